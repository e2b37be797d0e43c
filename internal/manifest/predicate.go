package manifest

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/expr-lang/expr"
)

// Facts is the machine-fact environment conditional predicates evaluate
// against. Keys are predicate identifiers ("hostname", "arch", ...).
type Facts map[string]any

// GatherFacts collects the standard machine facts. Callers may add their
// own keys before evaluation.
func GatherFacts() Facts {
	hostname, _ := os.Hostname()
	now := time.Now()
	return Facts{
		"hostname": hostname,
		"os":       runtime.GOOS,
		"arch":     runtime.GOARCH,
		"date":     now.Format(time.RFC3339),
		"weekday":  now.Weekday().String(),
	}
}

// EvaluateConditionals evaluates each conditional section's predicate
// against facts plus the active catalog list, returning the fragments
// whose predicate is true, in declaration order. A malformed or
// non-boolean predicate skips its fragment with a warning.
func EvaluateConditionals(m *Manifest, facts Facts, cataloglist []string, logger *slog.Logger) []*Manifest {
	if len(m.ConditionalItems) == 0 {
		return nil
	}

	env := make(map[string]any, len(facts)+1)
	for k, v := range facts {
		env[k] = v
	}
	env["catalogs"] = cataloglist

	var out []*Manifest
	for i := range m.ConditionalItems {
		ci := &m.ConditionalItems[i]
		if ci.Condition == "" {
			logger.Warn("conditional item without condition, skipping")
			continue
		}
		result, err := expr.Eval(ci.Condition, env)
		if err != nil {
			logger.Warn("conditional predicate failed",
				slog.String("condition", ci.Condition), slog.String("error", err.Error()))
			continue
		}
		truth, ok := result.(bool)
		if !ok {
			logger.Warn("conditional predicate is not boolean",
				slog.String("condition", ci.Condition))
			continue
		}
		if truth {
			out = append(out, &ci.Manifest)
		}
	}
	return out
}
