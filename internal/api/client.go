// Package api is the transport seam between the agent and the control
// plane. The core loop depends only on the Client interface; HTTPClient
// is the production implementation speaking JSON over HTTP with bearer
// token auth.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/remora-dev/remora/internal/protocol"
	"github.com/remora-dev/remora/internal/sysinfo"
)

// maxResponseSize caps control-plane response bodies.
const maxResponseSize = 4 << 20

// RegisterRequest identifies the agent host to the control plane.
type RegisterRequest struct {
	AgentID   string `json:"agent_id"`
	Hostname  string `json:"hostname"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	IPAddress string `json:"ip_address,omitempty"`
}

// RegisterResponse is the control plane's acknowledgment. The returned
// agent ID is authoritative and may differ from the requested one.
type RegisterResponse struct {
	AgentID string `json:"agent_id"`
}

// Client is everything the agent loop needs from the control plane.
type Client interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Heartbeat(ctx context.Context, agentID string, info *sysinfo.SystemInfo) error
	GetPendingCommands(ctx context.Context) ([]protocol.CommandSummary, error)
	GetCommand(ctx context.Context, commandID string) (*protocol.AgentCommand, error)
	SubmitResult(ctx context.Context, commandID string, result *protocol.CommandResult) error
}

// HTTPClient talks to one project's control plane endpoint.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the given endpoint and bearer token.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Register announces the agent to the control plane.
func (c *HTTPClient) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/agents/register", req, &resp); err != nil {
		return nil, fmt.Errorf("registering agent: %w", err)
	}
	return &resp, nil
}

// Heartbeat reports fresh host metrics for a registered agent.
func (c *HTTPClient) Heartbeat(ctx context.Context, agentID string, info *sysinfo.SystemInfo) error {
	path := "/agents/" + agentID + "/heartbeat"
	if err := c.do(ctx, http.MethodPost, path, info, nil); err != nil {
		return fmt.Errorf("sending heartbeat: %w", err)
	}
	return nil
}

// GetPendingCommands fetches queued command summaries. An empty slice is
// the normal idle answer.
func (c *HTTPClient) GetPendingCommands(ctx context.Context) ([]protocol.CommandSummary, error) {
	var resp struct {
		Commands []protocol.CommandSummary `json:"commands"`
	}
	if err := c.do(ctx, http.MethodGet, "/commands/pending", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching pending commands: %w", err)
	}
	return resp.Commands, nil
}

// GetCommand fetches the full payload for one command.
func (c *HTTPClient) GetCommand(ctx context.Context, commandID string) (*protocol.AgentCommand, error) {
	var cmd protocol.AgentCommand
	if err := c.do(ctx, http.MethodGet, "/commands/"+commandID, nil, &cmd); err != nil {
		return nil, fmt.Errorf("fetching command %s: %w", commandID, err)
	}
	return &cmd, nil
}

// SubmitResult reports a command's outcome back to the control plane.
func (c *HTTPClient) SubmitResult(ctx context.Context, commandID string, result *protocol.CommandResult) error {
	path := "/commands/" + commandID + "/result"
	if err := c.do(ctx, http.MethodPost, path, result, nil); err != nil {
		return fmt.Errorf("submitting result for %s: %w", commandID, err)
	}
	return nil
}

// do performs one JSON round trip. out may be nil when the response body
// is irrelevant.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
