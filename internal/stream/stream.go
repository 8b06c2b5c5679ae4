// Package stream defines the canonical text-fragment stream produced by
// provider adapters and consumed by the HTTP layer.
package stream

import (
	"context"
	"strings"
)

// Fragment is a single UTF-8 text chunk in vendor emission order.
type Fragment struct {
	Text string
}

// Stream is the unified streaming shape shared by all vendor adapters.
//
// Producer rules:
//   - close both channels when the stream ends
//   - emit at most one error on Err, then stop
//   - terminate promptly when the producing context is cancelled
//
// Fragment order on Fragments is the vendor's emission order; there is
// exactly one producer per stream.
type Stream struct {
	Fragments <-chan Fragment
	Err       <-chan error
}

// Collect drains s and returns the concatenated fragment text together with
// the first error the producer emitted, if any. It blocks until the producer
// closes both channels or ctx is cancelled.
func Collect(ctx context.Context, s *Stream) (string, error) {
	var out strings.Builder
	var firstErr error

	fragments := s.Fragments
	errs := s.Err

	for fragments != nil || errs != nil {
		select {
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			return out.String(), firstErr
		case f, ok := <-fragments:
			if !ok {
				fragments = nil
				continue
			}
			out.WriteString(f.Text)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return out.String(), firstErr
}
