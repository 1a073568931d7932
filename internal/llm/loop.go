package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// Loop detection thresholds.
const (
	loopCheckEvery    = 512
	loopWindow        = 2000
	loopTailLen       = 60
	loopTailMinChars  = 30
	loopTailRepeats   = 3
	loopFillerRepeats = 5
	loopTickerRepeats = 3
)

// fillerPhrases are stock phrases that models repeat when they stall.
var fillerPhrases = []string{
	"let me think",
	"let me analyze",
	"i need to",
	"wait,",
	"actually,",
	"vou analisar",
	"deixe-me",
	"preciso verificar",
}

var tickerField = regexp.MustCompile(`"ticker"\s*:\s*"([^"]+)"`)

// LoopDetector watches a growing stream of text for degenerate repetition.
// Feed it every chunk; it returns an error wrapping ErrRunawayOutput as soon
// as the accumulated text looks like a loop.
type LoopDetector struct {
	buf       strings.Builder
	lastCheck int
}

// NewLoopDetector creates an empty detector.
func NewLoopDetector() *LoopDetector {
	return &LoopDetector{}
}

// Feed appends text and runs the checks every loopCheckEvery characters.
func (d *LoopDetector) Feed(s string) error {
	d.buf.WriteString(s)
	if d.buf.Len()-d.lastCheck < loopCheckEvery {
		return nil
	}
	d.lastCheck = d.buf.Len()
	return d.Check()
}

// Text returns everything fed so far.
func (d *LoopDetector) Text() string { return d.buf.String() }

// Check runs all heuristics against the current buffer.
func (d *LoopDetector) Check() error {
	text := d.buf.String()
	window := text
	if len(window) > loopWindow {
		window = window[len(window)-loopWindow:]
	}

	if len(window) >= loopTailLen {
		tail := window[len(window)-loopTailLen:]
		if len(strings.TrimSpace(strings.ReplaceAll(tail, " ", ""))) >= loopTailMinChars {
			if n := strings.Count(window, tail); n >= loopTailRepeats {
				return fmt.Errorf("%w: trailing text repeated %d times", ErrRunawayOutput, n)
			}
		}
	}

	lower := strings.ToLower(window)
	for _, phrase := range fillerPhrases {
		if n := strings.Count(lower, phrase); n >= loopFillerRepeats {
			return fmt.Errorf("%w: phrase %q repeated %d times", ErrRunawayOutput, phrase, n)
		}
	}

	counts := make(map[string]int)
	for _, m := range tickerField.FindAllStringSubmatch(text, -1) {
		t := strings.ToUpper(m[1])
		counts[t]++
		if counts[t] >= loopTickerRepeats {
			return fmt.Errorf("%w: ticker %s emitted %d times", ErrRunawayOutput, t, counts[t])
		}
	}
	return nil
}
