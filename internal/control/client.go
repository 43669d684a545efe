package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client dials a running pipeline's control socket and issues one
// request per call, matching tsgopipectl's one-shot command style.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient builds a Client for the given socket path.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 5 * time.Second}
}

// Call dials, sends req, and returns the decoded Response.
func (c *Client) Call(req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("control: dial %q: %w", c.socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	enc := json.NewEncoder(conn)
	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("control: encode request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("control: read response: %w", err)
		}
		return nil, fmt.Errorf("control: connection closed without a response")
	}
	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("control: decode response: %w", err)
	}
	return &resp, nil
}

// Abort requests abort_pipeline (pipeline-design.md §6).
func (c *Client) Abort() (*Response, error) {
	return c.Call(Request{Command: "abort"})
}

// Status requests a pipeline stats snapshot.
func (c *Client) Status() (*Response, error) {
	return c.Call(Request{Command: "status"})
}

// Restart requests restart_stage (pipeline-design.md §4.5/§6).
func (c *Client) Restart(stageIndex int, args map[string]any, sameArgs bool) (*Response, error) {
	return c.Call(Request{Command: "restart", StageIndex: stageIndex, Args: args, SameArgs: sameArgs})
}
