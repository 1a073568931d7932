package strategy

import (
	"fmt"
	"strings"

	"github.com/seenimoa/openrank/pkg/models"
)

// evaluation accumulates a strategy's ordered criteria.
type evaluation struct {
	criteria []models.Criterion
}

func newEvaluation(size int) *evaluation {
	return &evaluation{criteria: make([]models.Criterion, 0, size)}
}

// add records a criterion and returns its outcome.
func (e *evaluation) add(label string, passed bool, description string) bool {
	e.criteria = append(e.criteria, models.Criterion{
		Label:       label,
		Passed:      passed,
		Description: description,
	})
	return passed
}

// optional checks v against rule. Missing data passes.
func (e *evaluation) optional(label string, v *float64, rule func(float64) bool, describe func(float64) string) bool {
	if v == nil {
		return e.add(label, true, fmt.Sprintf("%s: no data, benefit of the doubt", label))
	}
	return e.add(label, rule(*v), describe(*v))
}

// required checks v against rule. Missing data fails.
func (e *evaluation) required(label string, v *float64, rule func(float64) bool, describe func(float64) string) bool {
	if v == nil {
		return e.add(label, false, fmt.Sprintf("%s: data unavailable", label))
	}
	return e.add(label, rule(*v), describe(*v))
}

func (e *evaluation) passed() int {
	n := 0
	for _, c := range e.criteria {
		if c.Passed {
			n++
		}
	}
	return n
}

// score is the pass rate × 100.
func (e *evaluation) score() float64 {
	if len(e.criteria) == 0 {
		return 0
	}
	return float64(e.passed()) / float64(len(e.criteria)) * 100
}

// summary lists the passed and failed labels for the reasoning string.
func (e *evaluation) summary() string {
	var ok, failed []string
	for _, c := range e.criteria {
		if c.Passed {
			ok = append(ok, c.Label)
		} else {
			failed = append(failed, c.Label)
		}
	}
	s := fmt.Sprintf("%d/%d criteria met", len(ok), len(e.criteria))
	if len(failed) > 0 {
		s += "; failed: " + strings.Join(failed, ", ")
	}
	return s
}

// Rules used by most strategies.

func atLeast(floor float64) func(float64) bool {
	return func(v float64) bool { return v >= floor }
}

func atMost(ceiling float64) func(float64) bool {
	return func(v float64) bool { return v <= ceiling }
}

func between(lo, hi float64) func(float64) bool {
	return func(v float64) bool { return v >= lo && v <= hi }
}

func pctIs(name string, floor float64) func(float64) string {
	return func(v float64) string {
		return fmt.Sprintf("%s %.1f%% (min %.1f%%)", name, v*100, floor*100)
	}
}

func pctAtMost(name string, ceiling float64) func(float64) string {
	return func(v float64) string {
		return fmt.Sprintf("%s %.1f%% (max %.1f%%)", name, v*100, ceiling*100)
	}
}

func ratioIs(name string, floor float64) func(float64) string {
	return func(v float64) string {
		return fmt.Sprintf("%s %.2f (min %.2f)", name, v, floor)
	}
}

func ratioAtMost(name string, ceiling float64) func(float64) string {
	return func(v float64) string {
		return fmt.Sprintf("%s %.2f (max %.2f)", name, v, ceiling)
	}
}
