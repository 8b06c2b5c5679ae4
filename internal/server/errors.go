package server

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"chat-gateway/internal/apierr"
)

// errorBody is the failure envelope for every non-streamed error response.
type errorBody struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// gatewayErrorHandler maps any handler failure onto the fixed error
// taxonomy. The caller only ever sees the mapped UserMessage; the original
// error, which may carry raw vendor text, is logged server-side.
func gatewayErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		writeGatewayError(c, fromEchoError(echoErr))
		return
	}

	mapped := apierr.FromError(err)
	if mapped.HTTPStatus >= 500 || mapped.Code == apierr.CodeUnknown {
		slog.Error("request failed",
			"code", mapped.Code, "status", mapped.HTTPStatus, "cause", err)
	}
	writeGatewayError(c, mapped)
}

// fromEchoError translates failures raised by the framework itself, before
// any handler ran: the body limit, unrouted paths, unsupported methods.
func fromEchoError(echoErr *echo.HTTPError) *apierr.Error {
	switch echoErr.Code {
	case http.StatusRequestEntityTooLarge:
		return apierr.PayloadTooLarge()
	case http.StatusNotFound:
		return apierr.NotFound("the requested route does not exist")
	case http.StatusMethodNotAllowed:
		return apierr.Validation("method not allowed for this route")
	default:
		e := apierr.Unknown()
		e.HTTPStatus = echoErr.Code
		return e
	}
}

func writeGatewayError(c echo.Context, e *apierr.Error) {
	if e.RetryAfter > 0 {
		seconds := int(math.Ceil(e.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	body := errorBody{
		Message:   e.UserMessage,
		Code:      string(e.Code),
		Timestamp: e.Timestamp.Format(time.RFC3339),
	}
	if err := c.JSON(e.HTTPStatus, body); err != nil {
		slog.Error("failed to write error response", "err", err)
	}
}
