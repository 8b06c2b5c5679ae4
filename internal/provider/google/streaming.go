package google

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

type streamChunk struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

// processSSEStream reads the generateContent SSE response and forwards
// candidate text as fragments. Both channels are closed when the stream
// ends; at most one error is sent. Gemini sends no terminator event, so EOF
// marks a normal end of stream.
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
			errs <- fmt.Errorf("read google stream: %w", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			errs <- fmt.Errorf("decode google stream chunk: %w", err)
			return
		}

		if chunk.Error != nil {
			errs <- &apierr.VendorError{
				Vendor:  string(models.VendorGoogle),
				Code:    chunk.Error.Status,
				Message: chunk.Error.Message,
			}
			return
		}

		if len(chunk.Candidates) == 0 {
			continue
		}

		for _, p := range chunk.Candidates[0].Content.Parts {
			if p.Text == "" {
				continue
			}
			select {
			case fragments <- stream.Fragment{Text: p.Text}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}
}
