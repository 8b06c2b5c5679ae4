package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
	"chat-gateway/internal/profile"
	"chat-gateway/internal/provider"
	"chat-gateway/internal/schema"
	"chat-gateway/internal/stream"
)

// handleChat runs the full dispatch pipeline: validate, rate limit, resolve
// the caller's credential, send upstream, stream the reply. The credential is
// resolved fresh for this request and goes out of scope with it.
func (s *Server) handleChat(c echo.Context) error {
	ctx := c.Request().Context()
	if timeout := s.cfg.Server.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := readRequestBody(c)
	if err != nil {
		return err
	}

	vendor, req, err := schema.Validate(c.Param("vendor"), body)
	if err != nil {
		return err
	}

	callerID := c.RealIP()
	if ok, retryAfter := s.limiter.Allow(callerID + "|" + string(vendor)); !ok {
		return apierr.RateLimit(retryAfter)
	}

	prof, err := s.profiles.Lookup(ctx, callerID)
	if err != nil {
		return fmt.Errorf("resolve caller profile: %w", err)
	}

	apiKey, err := profile.Credential(prof, vendor)
	if err != nil {
		return err
	}

	prov, err := s.registry.Lookup(vendor)
	if err != nil {
		return apierr.NotFound(fmt.Sprintf("vendor %s is not available on this gateway", vendor))
	}

	cred := provider.Credential{
		APIKey:       apiKey,
		Organization: profile.OrganizationID(prof, vendor),
	}
	st, err := prov.Send(ctx, cred, req.Settings, req.Messages)
	if err != nil {
		return err
	}

	return writeStream(ctx, c, vendor, st)
}

func readRequestBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	defer req.Body.Close()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		// The body limit middleware rejects oversized payloads before the
		// handler runs; a read failure here means the client went away.
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}

// writeStream relays fragments to the caller as they arrive, flushing each
// one. Headers are written lazily on the first fragment so pre-stream
// failures can still produce a proper error status. Once bytes have been
// flushed the status is immutable: a later failure is logged server-side and
// the connection is aborted so the caller sees truncation rather than a
// clean end.
func writeStream(ctx context.Context, c echo.Context, vendor models.Vendor, st *stream.Stream) error {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		return errors.New("http writer does not support flushing")
	}

	fragments := st.Fragments
	errs := st.Err
	var streamErr error
	wrote := false

loop:
	for fragments != nil || errs != nil {
		select {
		case frag, open := <-fragments:
			if !open {
				fragments = nil
				continue
			}
			if !wrote {
				header := c.Response().Header()
				header.Set(echo.HeaderContentType, "text/plain; charset=utf-8")
				header.Set("Cache-Control", "no-cache")
				c.Response().WriteHeader(http.StatusOK)
				wrote = true
			}
			if _, err := io.WriteString(writer, frag.Text); err != nil {
				slog.Warn("client disconnected mid-stream", "vendor", vendor, "err", err)
				return nil
			}
			flusher.Flush()

		case err, open := <-errs:
			if !open {
				errs = nil
				continue
			}
			if err != nil && streamErr == nil {
				streamErr = err
			}

		case <-ctx.Done():
			if streamErr == nil {
				streamErr = ctx.Err()
			}
			break loop
		}
	}

	if streamErr != nil {
		if !wrote {
			return streamErr
		}
		mapped := apierr.FromError(streamErr)
		slog.Error("stream failed after partial write",
			"vendor", vendor, "code", mapped.Code, "cause", streamErr)
		panic(http.ErrAbortHandler)
	}

	if !wrote {
		return &apierr.VendorError{Vendor: string(vendor), Message: "empty response stream"}
	}
	return nil
}
