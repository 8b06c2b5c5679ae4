package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
	"chat-gateway/internal/stream"
)

type streamEvent struct {
	Type  string      `json:"type"`
	Delta *eventDelta `json:"delta,omitempty"`
	Error *apiError   `json:"error,omitempty"`
}

type eventDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// processSSEStream reads the Messages SSE response and forwards text deltas
// as fragments. Both channels are closed when the stream ends; at most one
// error is sent.
func processSSEStream(ctx context.Context, body io.ReadCloser, fragments chan<- stream.Fragment, errs chan<- error) {
	defer body.Close()
	defer close(fragments)
	defer close(errs)

	reader := bufio.NewReader(body)
	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return
			}
			errs <- fmt.Errorf("read anthropic stream: %w", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "event:") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			errs <- fmt.Errorf("decode anthropic stream event: %w", err)
			return
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta == nil || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			select {
			case fragments <- stream.Fragment{Text: event.Delta.Text}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}

		case "message_stop":
			return

		case "error":
			if event.Error != nil {
				errs <- &apierr.VendorError{
					Vendor:  string(models.VendorAnthropic),
					Code:    event.Error.Type,
					Message: event.Error.Message,
				}
				return
			}

		default:
			// message_start, content_block_start, content_block_stop,
			// message_delta and ping carry no text.
		}
	}
}
