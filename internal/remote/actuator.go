package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Actuator drives the physical buffet tray controller and the remote
// closeBuffet action exposed by the analyzer thing.
type Actuator interface {
	Toggle(ctx context.Context, open bool) error
	InvokeCloseAction(ctx context.Context) error
}

// Compile-time interface check
var _ Actuator = (*ActuatorClient)(nil)

// ActuatorClient posts to the controller's toggle endpoints.
//
// The endpoint names read inverted on purpose: closing the buffet hits
// toggle-on (the cover motor engages), opening hits toggle-off. Existing
// hardware depends on this mapping.
var togglePaths = map[bool]string{
	false: "/api/toggle-on",  // open=false, close the buffet
	true:  "/api/toggle-off", // open=true, open the buffet
}

// ActuatorClient is the HTTP client for the buffet controller.
type ActuatorClient struct {
	baseURL        string
	closeActionURL string
	timeout        time.Duration
	client         *http.Client
}

// NewActuatorClient creates a client for the actuator endpoints.
// closeActionURL is the remote closeBuffet action invoked by the
// verdict pipeline; it may live on a different host than the toggles.
func NewActuatorClient(baseURL, closeActionURL string, timeout time.Duration) *ActuatorClient {
	return &ActuatorClient{
		baseURL:        baseURL,
		closeActionURL: closeActionURL,
		timeout:        timeout,
		client:         &http.Client{},
	}
}

// Toggle posts to the toggle endpoint matching the requested state.
func (c *ActuatorClient) Toggle(ctx context.Context, open bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + togglePaths[open]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("actuator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("actuator returned status %d", resp.StatusCode)
	}

	return nil
}

// InvokeCloseAction posts the remote closeBuffet action.
func (c *ActuatorClient) InvokeCloseAction(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.closeActionURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("close action unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("close action returned status %d", resp.StatusCode)
	}

	return nil
}
