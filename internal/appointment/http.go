package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient reads appointments from the CareLink booking API. It implements
// Authority for the relay and additionally lists the authenticated user's
// upcoming appointments for the CLI.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client for the booking API at baseURL. token is
// sent as a bearer credential; the relay uses a service token, the CLI the
// user's session token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    Appointment `json:"data"`
}

type listResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    []Appointment `json:"data"`
}

// Lookup fetches the appointment owning roomID.
func (c *HTTPClient) Lookup(ctx context.Context, roomID string) (*Appointment, error) {
	endpoint := fmt.Sprintf("%s/api/appointments/room/%s", c.baseURL, url.PathEscape(roomID))

	var resp lookupResponse
	status, err := c.get(ctx, endpoint, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK || !resp.Success {
		return nil, fmt.Errorf("appointment lookup: http %d: %s", status, resp.Message)
	}

	appt := resp.Data
	return &appt, nil
}

// List returns the appointments visible to the bearer of the client's token.
func (c *HTTPClient) List(ctx context.Context) ([]Appointment, error) {
	endpoint := c.baseURL + "/api/appointments"

	var resp listResponse
	status, err := c.get(ctx, endpoint, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || !resp.Success {
		return nil, fmt.Errorf("list appointments: http %d: %s", status, resp.Message)
	}

	return resp.Data, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("booking api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
