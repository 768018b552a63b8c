package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackMessage is reported when no message can be extracted from a failed response
const FallbackMessage = "An unexpected error occurred"

// RequestError is a failed call to the server
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return e.Message
}

// NewRequestError builds a RequestError from a response body
func NewRequestError(statusCode int, body []byte) *RequestError {
	return &RequestError{
		StatusCode: statusCode,
		Code:       extractCode(body),
		Message:    ExtractMessage(body),
	}
}

// ExtractMessage returns the human-readable message of an error body.
// In order: a string body, a message field, a detail field, an errors
// field serialized as JSON, the envelope error.message, then FallbackMessage.
func ExtractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return FallbackMessage
	}

	var raw any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		// plain text body
		return trimmed
	}

	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
		return FallbackMessage
	case map[string]any:
		if s, ok := nonEmptyString(v["message"]); ok {
			return s
		}
		if s, ok := nonEmptyString(v["detail"]); ok {
			return s
		}
		if errs, ok := v["errors"]; ok && errs != nil {
			if s, ok := nonEmptyString(errs); ok {
				return s
			}
			if b, err := json.Marshal(errs); err == nil {
				return string(b)
			}
		}
		switch e := v["error"].(type) {
		case map[string]any:
			if s, ok := nonEmptyString(e["message"]); ok {
				return s
			}
		case string:
			if s, ok := nonEmptyString(e); ok {
				return s
			}
		}
	}
	return FallbackMessage
}

func extractCode(body []byte) string {
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return ""
	}
	return envelope.Error.Code
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// TransportError wraps a failure to reach the server
func TransportError(err error) *RequestError {
	return &RequestError{Message: fmt.Sprintf("Cannot reach server: %v", err)}
}
