package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type collected struct {
	text string
	err  error
}

// Collect streams req from p and returns the full text. The call is bounded
// by timeout (DefaultCallTimeout when ≤ 0) and aborted early when the
// output starts looping. The stream context is always cancelled on return.
func Collect(ctx context.Context, p LLMProvider, req *Request, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan collected, 1)
	go func() {
		text, err := drain(streamCtx, p, req)
		done <- collected{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.text, res.err
	case <-timer.C:
		cancel()
		return "", fmt.Errorf("%w after %s (%s)", ErrCallTimeout, timeout, p.Name())
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func drain(ctx context.Context, p LLMProvider, req *Request) (string, error) {
	ch, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	detector := NewLoopDetector()
	for chunk := range ch {
		if chunk.Err != nil {
			return detector.Text(), chunk.Err
		}
		if chunk.Content != "" {
			if err := detector.Feed(chunk.Content); err != nil {
				return detector.Text(), err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return detector.Text(), err
	}

	if err := detector.Check(); err != nil {
		return detector.Text(), err
	}

	text := detector.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w from %s", ErrEmptyResponse, p.Name())
	}
	return text, nil
}
