package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/stream"
)

type streamChunk struct {
	Choices []streamChoice  `json:"choices"`
	Error   *apiErrorObject `json:"error,omitempty"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamDelta struct {
	Content string `json:"content"`
}

// processSSEStream reads the vendor's SSE response and forwards content
// deltas as fragments. Both channels are closed when the stream ends; at
// most one error is sent.
func (p *Provider) processSSEStream(ctx context.Context, body io.ReadCloser, fragments chan<- stream.Fragment, errs chan<- error) {
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
			errs <- fmt.Errorf("read %s stream: %w", p.vendor, err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			errs <- fmt.Errorf("decode %s stream chunk: %w", p.vendor, err)
			return
		}

		// Some vendors report mid-stream failures as an error object in
		// place of a chunk.
		if chunk.Error != nil {
			errs <- &apierr.VendorError{
				Vendor:  string(p.vendor),
				Code:    chunk.Error.code(),
				Message: chunk.Error.Message,
			}
			return
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			select {
			case fragments <- stream.Fragment{Text: choice.Delta.Content}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}
}
