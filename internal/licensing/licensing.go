// Package licensing annotates optional-install candidates with remote
// license seat availability.
package licensing

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/plan"
)

// maxURLLen caps each batched seat-lookup request URL.
const maxURLLen = 256

// DataFetcher is the slice of the transport the seat lookup needs.
type DataFetcher interface {
	FetchData(ctx context.Context, rawURL string) ([]byte, error)
}

// UpdateAvailableSeats looks up remaining seats for every optional-install
// candidate that advertises seat info and is not yet installed, batching
// requests so each URL stays under the length cap. Zero-seat items stay
// visible but unselectable. Lookup failures are logged and non-fatal.
func UpdateAvailableSeats(ctx context.Context, fetcher DataFetcher, licenseURL string, p *plan.Plan, logger *slog.Logger) {
	if licenseURL == "" || len(p.OptionalInstalls) == 0 {
		return
	}

	var toCheck []string
	for i := range p.OptionalInstalls {
		item := &p.OptionalInstalls[i]
		if item.LicensedSeatInfoAvailable && !item.Installed {
			toCheck = append(toCheck, item.Name)
		}
	}
	if len(toCheck) == 0 {
		return
	}

	seats := make(map[string]int)
	for _, batchURL := range batchURLs(licenseURL, toCheck) {
		logger.Debug("fetching seat data", slog.String("url", batchURL))
		data, err := fetcher.FetchData(ctx, batchURL)
		if err != nil {
			logger.Warn("seat lookup failed",
				slog.String("url", batchURL), slog.String("error", err.Error()))
			continue
		}
		batch := make(map[string]int)
		if err := yaml.Unmarshal(data, &batch); err != nil {
			logger.Warn("bad seat data",
				slog.String("url", batchURL), slog.String("error", err.Error()))
			continue
		}
		for name, count := range batch {
			seats[name] = count
		}
	}

	for i := range p.OptionalInstalls {
		item := &p.OptionalInstalls[i]
		if !item.LicensedSeatInfoAvailable || item.Installed {
			continue
		}
		available := seats[item.Name] > 0
		item.LicensedSeatsAvailable = &available
		logger.Debug("recorded seat availability",
			slog.String("item", item.Name), slog.Bool("available", available))
	}
}

// batchURLs splits names into GET requests, shrinking each batch until
// its URL fits under the cap. A batch never drops below one name.
func batchURLs(licenseURL string, names []string) []string {
	sep := "?"
	if strings.Contains(licenseURL, "?") {
		sep = "&"
	}

	var out []string
	start := 0
	for start < len(names) {
		end := len(names)
		var candidate string
		for {
			params := make([]string, 0, end-start)
			for _, name := range names[start:end] {
				params = append(params, "name="+url.QueryEscape(name))
			}
			candidate = licenseURL + sep + strings.Join(params, "&")
			if len(candidate) < maxURLLen || end-start <= 1 {
				break
			}
			end--
		}
		out = append(out, candidate)
		start = end
	}
	return out
}
