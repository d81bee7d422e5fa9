package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// StatusError is an upstream 5xx answer seen through the circuit breaker.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Body)
}

// upstreamError covers the two error bodies we meet in practice: our own
// {"error":{"code","message"}} envelope and the bot API's
// {"ok":false,"error_code":N,"description":"..."}.
type upstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	OK          *bool  `json:"ok"`
	Description string `json:"description"`
}

// ParseResponseError reads a non-2xx response and translates it into an
// AppError that keeps the upstream meaning. The body is consumed and closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	var parsed upstreamError
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != nil:
			return mapUpstreamError(resp.StatusCode, parsed.Error.Message, upstream)
		case parsed.OK != nil && !*parsed.OK && parsed.Description != "":
			return mapUpstreamError(resp.StatusCode, parsed.Description, upstream)
		}
	}

	return fmt.Errorf("%s returned status %d: %s", upstream, resp.StatusCode, string(body))
}

func mapUpstreamError(status int, message, upstream string) error {
	qualified := fmt.Sprintf("%s: %s", upstream, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(upstream, message)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified, nil)
	case status >= 500:
		return fmt.Errorf("%s server error (%d): %s", upstream, status, message)
	default:
		return &apperrors.AppError{
			Code:    "UPSTREAM_ERROR",
			Message: qualified,
			Status:  status,
		}
	}
}

// IsClientError reports a 4xx status. Client errors are not worth retrying:
// the same request will be rejected again.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
