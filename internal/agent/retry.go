package agent

import (
	"fmt"
	"strings"
)

// attemptState is the bounded retry state of one pipeline stage: an attempt
// counter and the corrective guidance accumulated from failed attempts.
type attemptState struct {
	stage    string
	max      int
	attempt  int
	guidance []string
}

func newAttemptState(stage string, budget int) *attemptState {
	if budget < 1 {
		budget = 1
	}
	return &attemptState{stage: stage, max: budget}
}

// next starts a new attempt. It returns false once the budget is spent.
func (s *attemptState) next() bool {
	if s.attempt >= s.max {
		return false
	}
	s.attempt++
	return true
}

// fail records corrective guidance for the following attempt. Duplicate
// guidance is kept once.
func (s *attemptState) fail(guidance ...string) {
	for _, g := range guidance {
		g = strings.TrimSpace(g)
		if g == "" || s.has(g) {
			continue
		}
		s.guidance = append(s.guidance, g)
	}
}

func (s *attemptState) has(g string) bool {
	for _, existing := range s.guidance {
		if existing == g {
			return true
		}
	}
	return false
}

func (s *attemptState) String() string {
	return fmt.Sprintf("%s attempt %d/%d", s.stage, s.attempt, s.max)
}

// buildPrompt appends the corrective guidance of previous attempts to the
// base prompt. It is pure: the same inputs always give the same prompt.
func buildPrompt(base string, guidance []string) string {
	if len(guidance) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n## CORRECTIONS REQUIRED\n")
	sb.WriteString("Your previous answer was rejected. Fix every item below and answer again:\n")
	for i, g := range guidance {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, g)
	}
	return sb.String()
}
