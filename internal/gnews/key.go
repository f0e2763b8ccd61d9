package gnews

import (
	"context"
	"net/http"
	"strings"
)

// APIKeyHeader is the call metadata field that carries the GNews API key.
const APIKeyHeader = "X-Api-Key"

// MetadataFunc returns the caller-supplied metadata of the current call.
type MetadataFunc func(context.Context) http.Header

// ResolveKey extracts the API key from call metadata. Header lookup is
// case-insensitive and the value is trimmed.
func ResolveKey(h http.Header) (string, error) {
	if h == nil {
		return "", ErrAPIKeyRequired
	}
	key := strings.TrimSpace(h.Get(APIKeyHeader))
	if key == "" {
		// Headers built by hand may not be in canonical form.
		for name, values := range h {
			if strings.EqualFold(name, APIKeyHeader) && len(values) > 0 {
				key = strings.TrimSpace(values[0])
				break
			}
		}
	}
	if key == "" {
		return "", ErrAPIKeyRequired
	}
	return key, nil
}
