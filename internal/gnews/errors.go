package gnews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrAPIKeyRequired is returned when the call metadata carries no API key.
var ErrAPIKeyRequired = errors.New("GNews API key required (missing header 'X-Api-Key')")

// ValidationError reports a caller argument that failed a format or range check.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DeliveryKind classifies a failed upstream request.
type DeliveryKind string

const (
	KindTimeout     DeliveryKind = "timeout"
	KindHTTPStatus  DeliveryKind = "http-status"
	KindBadResponse DeliveryKind = "bad-response"
	KindNetwork     DeliveryKind = "network"
)

// ErrorDetail is the best-effort error payload of a failed upstream response.
// Exactly one of Structured or Raw is set.
type ErrorDetail struct {
	Structured any
	Raw        string
}

func (d *ErrorDetail) String() string {
	if d == nil {
		return ""
	}
	if d.Structured == nil {
		return d.Raw
	}
	if s, ok := d.Structured.(string); ok {
		return s
	}
	b, err := json.Marshal(d.Structured)
	if err != nil {
		return fmt.Sprint(d.Structured)
	}
	return string(b)
}

// maxRawDetail bounds the raw body kept on a DeliveryError.
const maxRawDetail = 512

// parseErrorDetail extracts the `errors` or `message` field of a JSON error
// body, falling back to the whole payload and then to the raw text.
func parseErrorDetail(body []byte) *ErrorDetail {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		if len(trimmed) > maxRawDetail {
			trimmed = trimmed[:maxRawDetail] + "..."
		}
		return &ErrorDetail{Raw: trimmed}
	}

	if obj, ok := payload.(map[string]any); ok {
		for _, key := range []string{"errors", "message"} {
			if v, ok := obj[key]; ok && truthy(v) {
				return &ErrorDetail{Structured: v}
			}
		}
	}
	return &ErrorDetail{Structured: payload}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}

// DeliveryError is returned when the upstream request could not produce a
// usable JSON body.
type DeliveryError struct {
	Kind       DeliveryKind
	StatusCode int
	Detail     *ErrorDetail
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "timeout when calling GNews API"
	case KindHTTPStatus:
		msg := fmt.Sprintf("HTTP error %d from GNews API", e.StatusCode)
		if d := e.Detail.String(); d != "" {
			msg += ". Details: " + d
		}
		return msg
	case KindBadResponse:
		return "invalid GNews API response (JSON expected)"
	default:
		return fmt.Sprintf("network error (status: %s)", e.Status())
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Status returns the upstream status code, or "unknown" when none was received.
func (e *DeliveryError) Status() string {
	if e.StatusCode == 0 {
		return "unknown"
	}
	return strconv.Itoa(e.StatusCode)
}

// Kind returns the machine-usable category of err.
func Kind(err error) string {
	var verr *ValidationError
	var derr *DeliveryError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAPIKeyRequired):
		return "authentication"
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &derr):
		return string(derr.Kind)
	case errors.Is(err, context.DeadlineExceeded):
		return string(KindTimeout)
	}
	return "internal"
}
