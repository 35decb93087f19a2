package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/giftcart/pkg/errors"
)

// maxErrorBody bounds how much of an error body is read.
const maxErrorBody = 1 << 20

// errorBody accepts the standard {"error":{"code","message"}} envelope as
// well as the flat {"message"} and {"success":false,"message"} bodies older
// backends answer with, and {"error":"text"}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx response and translates it
// into an AppError whose Message is the server's message verbatim. When the
// body carries no message, Message is empty and callers supply their own.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := decodeErrorBody(bodyBytes)
	return apperrors.FromStatus(resp.StatusCode, code, message)
}

func decodeErrorBody(body []byte) (code, message string) {
	var parsed errorBody
	if json.Unmarshal(body, &parsed) != nil {
		return "", ""
	}

	if len(parsed.Error) > 0 {
		var env envelopeError
		if json.Unmarshal(parsed.Error, &env) == nil && (env.Code != "" || env.Message != "") {
			return env.Code, env.Message
		}
		var text string
		if json.Unmarshal(parsed.Error, &text) == nil && text != "" {
			return "", text
		}
	}
	return "", strings.TrimSpace(parsed.Message)
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
