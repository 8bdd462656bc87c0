package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const allowSentinel = "allow"

// Client talks to the PDP over HTTP. It is safe for concurrent use; every
// call carries its own timeout derived from the configured budget.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a PDP client for the given configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

type decisionRequest struct {
	Principal string         `json:"principal"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Context   map[string]any `json:"context"`
}

type decisionDiagnostics struct {
	Reason []string `json:"reason"`
	Errors []string `json:"errors"`
}

type decisionResponse struct {
	Decision    string              `json:"decision"`
	Diagnostics decisionDiagnostics `json:"diagnostics"`
}

// Decide sends one point-decision request and enforces the configured
// failure policy. It never returns an error: transport failures, timeouts,
// and malformed responses all resolve through failurePolicy, and any
// non-allow decision label resolves to deny.
func (c *Client) Decide(ctx context.Context, ids Identifiers) Decision {
	reqContext := ids.Context
	if reqContext == nil {
		// The PDP schema requires the context object even when empty.
		reqContext = map[string]any{}
	}

	body, err := c.post(ctx, c.cfg.Endpoint, decisionRequest{
		Principal: ids.Principal,
		Action:    ids.Action,
		Resource:  ids.Resource,
		Context:   reqContext,
	})
	if err != nil {
		return c.failurePolicy(err)
	}

	var parsed decisionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return c.failurePolicy(fmt.Errorf("malformed decision response: %w", err))
	}

	if strings.EqualFold(parsed.Decision, allowSentinel) {
		return Decision{
			Allowed:          true,
			MatchedPolicyIDs: parsed.Diagnostics.Reason,
		}
	}

	reason := ""
	if len(parsed.Diagnostics.Errors) > 0 {
		reason = parsed.Diagnostics.Errors[0]
	}
	if reason == "" {
		reason = "denied by policy"
		if len(parsed.Diagnostics.Reason) > 0 {
			reason = fmt.Sprintf("denied by policy: %s", strings.Join(parsed.Diagnostics.Reason, ", "))
		}
	}

	return Decision{
		Allowed:          false,
		Reason:           reason,
		MatchedPolicyIDs: parsed.Diagnostics.Reason,
	}
}

// failurePolicy converts a failed decision attempt into an enforced result.
// The default is fail-closed: an unavailable PDP must never grant broader
// access than an explicit policy would.
func (c *Client) failurePolicy(err error) Decision {
	mode := "authorization request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		mode = "authorization request timed out"
	}

	if c.cfg.FailOpen {
		slog.Warn("authorization check failed, allowing by fail-open policy", "error", err)
		return Decision{
			Allowed: true,
			Reason:  fmt.Sprintf("%s (fail-open): %v", mode, err),
		}
	}

	slog.Warn("authorization check failed, denying by fail-closed policy", "error", err)
	return Decision{
		Allowed: false,
		Reason:  fmt.Sprintf("Authorization service unavailable: %v", err),
	}
}

// Health probes the PDP health endpoint on the same origin as the decision
// endpoint. It reports reachability only; it carries no authorization
// semantics.
func (c *Client) Health(ctx context.Context) error {
	if c.cfg.Endpoint == "" {
		return fmt.Errorf("authorization endpoint not configured")
	}

	base, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	base.Path = "/health"
	base.RawQuery = ""

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// post sends one JSON request and returns the response body. Non-2xx
// statuses are errors regardless of body content.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint not configured")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return io.ReadAll(resp.Body)
}
