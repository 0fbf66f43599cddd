package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 4 << 20

// postJSON sends in as a JSON body to url and decodes the response into out,
// normalising every failure into a ProviderError.
func postJSON(ctx context.Context, client *http.Client, providerID, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return NewProviderError(ErrorConfiguration, providerID, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewProviderError(ErrorConfiguration, providerID, "build request", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return transportError(providerID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(providerID, err)
	}
	if err := statusError(providerID, resp.StatusCode, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewProviderError(ErrorInvalidResponse, providerID, "decode response", err)
	}
	return nil
}

func transportError(providerID string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		pe := NewProviderError(ErrorUnavailable, providerID, "request canceled", err)
		pe.Retryable = false
		return pe
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
	default:
		return NewProviderError(ErrorUnavailable, providerID, "request failed", err)
	}
}

func statusError(providerID string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := fmt.Sprintf("status %d: %s", status, truncate(string(body), 256))
	switch {
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, providerID, msg, nil)
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return NewProviderError(ErrorTimeout, providerID, msg, nil)
	case status >= 500:
		return NewProviderError(ErrorUnavailable, providerID, msg, nil)
	default:
		return NewProviderError(ErrorConfiguration, providerID, msg, nil)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
