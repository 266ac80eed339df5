package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// errAPIRequest wraps a non-2xx response from tracerd's HTTP API.
var errAPIRequest = errors.New("tracerd request failed")

// client is a thin HTTP wrapper over tracerd's /v1 API surface.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, hc *http.Client) *client {
	return &client{baseURL: baseURL, http: hc}
}

type stateView struct {
	ID                int    `json:"id"`
	Depth             int    `json:"depth"`
	Flags             string `json:"flags"`
	AllowedCount      int    `json:"allowed_count"`
	OutgoingCount     int    `json:"outgoing_count"`
	IncomingCount     int    `json:"incoming_count"`
	MaxSessionDepth   uint   `json:"max_session_depth"`
	DefinitelyBlocked bool   `json:"definitely_blocked"`
}

type stepView struct {
	Kind    string `json:"kind"`
	StateID int    `json:"state_id"`
}

type wholeGraphView struct {
	GraphFull   bool     `json:"graph_full"`
	Failures    []string `json:"failures,omitempty"`
	StatesTotal int      `json:"states_total"`
	FinalTotal  int      `json:"final_states_total"`
}

type cycleView struct {
	Found  bool  `json:"found"`
	Prefix []int `json:"prefix"`
	Cycle  []int `json:"cycle"`
}

func (c *client) Start(ctx context.Context) (*stateView, error) {
	var out stateView
	if err := c.do(ctx, http.MethodPost, "/v1/trace/start", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *client) Step(ctx context.Context, stateID, transIndex int) (*stepView, error) {
	req := map[string]int{"state_id": stateID, "trans_index": transIndex}

	var out stepView
	if err := c.do(ctx, http.MethodPost, "/v1/trace/step", req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *client) WholeGraph(ctx context.Context) (*wholeGraphView, error) {
	var out wholeGraphView
	if err := c.do(ctx, http.MethodPost, "/v1/trace/whole-graph", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *client) ListStates(ctx context.Context) ([]stateView, error) {
	var out []stateView
	if err := c.do(ctx, http.MethodGet, "/v1/states", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *client) GetState(ctx context.Context, id int) (*stateView, error) {
	var out stateView
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/states/%d", id), nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *client) StateDump(ctx context.Context, id int) (string, error) {
	body, err := c.raw(ctx, http.MethodGet, fmt.Sprintf("/v1/states/%d/dump", id), nil)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

func (c *client) InjectState(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/states/%d/inject", id), nil, nil)
}

func (c *client) Mark(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/mark-can-lead-to-final", nil, nil)
}

func (c *client) DetectOneCycle(ctx context.Context) (*cycleView, error) {
	var out cycleView
	if err := c.do(ctx, http.MethodGet, "/v1/cycles/one", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *client) DetectAllCycles(ctx context.Context) ([]cycleView, error) {
	var out []cycleView
	if err := c.do(ctx, http.MethodGet, "/v1/cycles/all", nil, &out); err != nil {
		return nil, err
	}

	// Every entry of the all-cycles response is a found cycle; the server
	// does not send a "found" field for them.
	for i := range out {
		out[i].Found = true
	}

	return out, nil
}

func (c *client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	data, err := c.raw(ctx, method, path, reqBody)
	if err != nil {
		return err
	}

	if respBody == nil || len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("decode response from %s %s: %w", method, path, err)
	}

	return nil
}

func (c *client) raw(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var body io.Reader

	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body from %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %d: %s", errAPIRequest, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	return data, nil
}
