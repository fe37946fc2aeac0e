// Package alexaapi calls the Alexa REST API for auxiliary lookups: the
// device timezone setting and the progressive-response directive. Both calls
// are best-effort; callers must treat failures as non-fatal.
package alexaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timezone fetches the device's System.timeZone setting. The endpoint returns
// the identifier as a quoted JSON string.
func (c *Client) Timezone(ctx context.Context, apiEndpoint, deviceID, accessToken string) (string, error) {
	if apiEndpoint == "" || deviceID == "" || accessToken == "" {
		return "", errors.New("alexaapi: endpoint, device id and access token are required")
	}

	url := strings.TrimRight(apiEndpoint, "/") + "/v2/devices/" + deviceID + "/settings/System.timeZone"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("alexaapi: create timezone request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("alexaapi: timezone request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("alexaapi: timezone lookup returned status %d", res.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("alexaapi: read timezone response: %w", err)
	}
	tz := strings.Trim(strings.TrimSpace(string(buf)), `"`)
	if tz == "" {
		return "", errors.New("alexaapi: empty timezone in response")
	}
	return tz, nil
}

type progressiveDirective struct {
	Header    directiveHeader `json:"header"`
	Directive directiveBody   `json:"directive"`
}

type directiveHeader struct {
	RequestID string `json:"requestId"`
}

type directiveBody struct {
	Type   string `json:"type"`
	Speech string `json:"speech"`
}

// SendProgressiveResponse speaks interim feedback while the main flow is
// still running. SSML markup in speech is passed through as-is.
func (c *Client) SendProgressiveResponse(ctx context.Context, apiEndpoint, accessToken, requestID, speech string) error {
	if apiEndpoint == "" || accessToken == "" || requestID == "" {
		return errors.New("alexaapi: endpoint, access token and request id are required")
	}

	body, err := json.Marshal(progressiveDirective{
		Header:    directiveHeader{RequestID: requestID},
		Directive: directiveBody{Type: "VoicePlayer.Speak", Speech: speech},
	})
	if err != nil {
		return fmt.Errorf("alexaapi: marshal directive: %w", err)
	}

	url := strings.TrimRight(apiEndpoint, "/") + "/v1/directives"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alexaapi: create directive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("alexaapi: directive request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("alexaapi: directive returned status %d", res.StatusCode)
	}
	return nil
}
