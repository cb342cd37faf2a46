package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/tamrstore/storefront/pkg/errors"
)

// upstreamErrorResponse is the error envelope returned by the shop REST API.
type upstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// ParseResponseError consumes and closes a non-2xx response body and maps it
// to an AppError. upstream names the API in messages ("catalog", "orders").
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	var parsed upstreamErrorResponse
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Error != nil:
			return mapUpstreamError(resp.StatusCode, parsed.Error.Code, parsed.Error.Message, upstream)
		case parsed.Message != "":
			return mapUpstreamError(resp.StatusCode, "", parsed.Message, upstream)
		}
	}

	return mapUpstreamError(resp.StatusCode, "", string(body), upstream)
}

func mapUpstreamError(status int, code, message, upstream string) error {
	qualified := fmt.Sprintf("%s: %s", upstream, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(upstream, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusGone:
		return apperrors.Gone(qualified)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualified)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", upstream, status, code, message)
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{Code: code, Message: qualified, Status: status}
	}
}

// TransportError maps a failed Do call to an error for the caller. AppErrors,
// such as those produced by a breaker fallback, pass through unchanged;
// anything else means the upstream could not be reached.
func TransportError(err error, upstream string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.ServiceUnavailable(upstream + " is temporarily unavailable")
}
