package licensing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/starford/raido/internal/plan"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seatServer answers every batch with fixed seat counts and records the
// URLs it saw.
type seatServer struct {
	seats map[string]int
	urls  []string
	fail  bool
}

func (s *seatServer) FetchData(_ context.Context, rawURL string) ([]byte, error) {
	s.urls = append(s.urls, rawURL)
	if s.fail {
		return nil, fmt.Errorf("get %s: connection refused", rawURL)
	}
	var b strings.Builder
	for name, count := range s.seats {
		if strings.Contains(rawURL, "name="+name) {
			fmt.Fprintf(&b, "%s: %d\n", name, count)
		}
	}
	return []byte(b.String()), nil
}

func candidatePlan(names ...string) *plan.Plan {
	p := plan.New()
	for _, name := range names {
		p.OptionalInstalls = append(p.OptionalInstalls, plan.OptionalInstall{
			Name:                      name,
			LicensedSeatInfoAvailable: true,
		})
	}
	return p
}

func TestSeatsAnnotated(t *testing.T) {
	srv := &seatServer{seats: map[string]int{"Sketch": 3, "Tableau": 0}}
	p := candidatePlan("Sketch", "Tableau")
	p.OptionalInstalls = append(p.OptionalInstalls,
		plan.OptionalInstall{Name: "Free"},
		plan.OptionalInstall{Name: "Owned", LicensedSeatInfoAvailable: true, Installed: true},
	)

	UpdateAvailableSeats(context.Background(), srv, "https://repo.example/seats", p, testLogger())

	byName := make(map[string]*plan.OptionalInstall)
	for i := range p.OptionalInstalls {
		byName[p.OptionalInstalls[i].Name] = &p.OptionalInstalls[i]
	}
	if got := byName["Sketch"].LicensedSeatsAvailable; got == nil || !*got {
		t.Errorf("Sketch seats = %v, want available", got)
	}
	// zero seats stays visible but unselectable
	if got := byName["Tableau"].LicensedSeatsAvailable; got == nil || *got {
		t.Errorf("Tableau seats = %v, want unavailable", got)
	}
	// no seat info → untouched; installed → untouched
	if byName["Free"].LicensedSeatsAvailable != nil {
		t.Error("Free should not be annotated")
	}
	if byName["Owned"].LicensedSeatsAvailable != nil {
		t.Error("installed item should not be checked")
	}
}

func TestLookupFailureNonFatal(t *testing.T) {
	srv := &seatServer{fail: true}
	p := candidatePlan("Sketch")

	UpdateAvailableSeats(context.Background(), srv, "https://repo.example/seats", p, testLogger())

	// failure leaves the candidate annotated as unavailable rather than
	// aborting the pass
	if got := p.OptionalInstalls[0].LicensedSeatsAvailable; got == nil || *got {
		t.Errorf("seats after failure = %v, want unavailable", got)
	}
}

func TestBatchURLsUnderCap(t *testing.T) {
	var names []string
	for i := 0; i < 40; i++ {
		names = append(names, fmt.Sprintf("Application-%02d", i))
	}

	urls := batchURLs("https://repo.example/seats", names)
	if len(urls) < 2 {
		t.Fatalf("len(urls) = %d, want the batch split", len(urls))
	}
	seen := 0
	for _, u := range urls {
		if len(u) >= maxURLLen {
			t.Errorf("url length %d >= cap: %s", len(u), u)
		}
		seen += strings.Count(u, "name=")
	}
	if seen != len(names) {
		t.Errorf("names across batches = %d, want %d", seen, len(names))
	}
}

func TestBatchURLsSingleOversizeName(t *testing.T) {
	long := strings.Repeat("VeryLongApplicationName", 20)
	urls := batchURLs("https://repo.example/seats", []string{long})
	if len(urls) != 1 {
		t.Fatalf("len(urls) = %d, want 1 even over the cap", len(urls))
	}
}

func TestBatchURLsQuerySeparator(t *testing.T) {
	urls := batchURLs("https://repo.example/seats?tenant=a", []string{"X"})
	if len(urls) != 1 || !strings.Contains(urls[0], "?tenant=a&name=X") {
		t.Errorf("urls = %v, want & separator appended", urls)
	}
}
