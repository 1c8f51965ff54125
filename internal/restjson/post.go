// Package restjson posts JSON requests to Google-style REST endpoints that
// authenticate with a key query parameter.
package restjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rbright/murmur/internal/fault"
)

const maxErrorBody = 512

// Endpoint is a target URL plus its optional API key.
type Endpoint struct {
	URL    string
	APIKey string
}

// Post marshals in, sends it to e, and decodes a 2xx response into out.
// op names the call in error messages. Every failure except context
// cancellation wraps fault.ErrServiceFailure.
func Post(ctx context.Context, client *http.Client, e Endpoint, op string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	target, err := WithAPIKey(e.URL, e.APIKey)
	if err != nil {
		return fmt.Errorf("%w: %s endpoint: %v", fault.ErrServiceFailure, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", fault.ErrServiceFailure, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s request: %v", fault.ErrServiceFailure, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s returned %s: %s", fault.ErrServiceFailure, op, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", fault.ErrServiceFailure, op, err)
	}
	return nil
}

// WithAPIKey appends the key query parameter when a key is configured.
func WithAPIKey(endpoint string, apiKey string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	if apiKey == "" {
		return parsed.String(), nil
	}
	query := parsed.Query()
	query.Set("key", apiKey)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
