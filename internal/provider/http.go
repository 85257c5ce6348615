package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// postJSON sends a JSON payload and returns the response body. Non-2xx
// statuses and transport failures come back classified.
func postJSON(ctx context.Context, client *http.Client, name Name, url string, headers map[string]string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Provider: name, Kind: KindInvalidRequest, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: name, Kind: KindUnavailable, Message: "read response body", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError(name, resp.StatusCode, string(body))
	}
	return body, nil
}
