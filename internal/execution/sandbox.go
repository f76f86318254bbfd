package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Request is a single program submission to a sandbox
type Request struct {
	Language      string
	Source        string
	TimeLimit     time.Duration
	MemoryLimitMB int
}

// Response is what a sandbox reports after running a program
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Sandbox is the transport to an isolated runtime. Any returned error means
// the program may not have run.
type Sandbox interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// HTTPSandbox talks to an execution service exposing POST /execute
type HTTPSandbox struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSandbox creates a client for the execution service at baseURL
func NewHTTPSandbox(baseURL string, httpClient *http.Client) *HTTPSandbox {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPSandbox{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type executeRequest struct {
	Language    string `json:"language"`
	SourceCode  string `json:"source_code"`
	TimeLimit   int    `json:"time_limit"`             // seconds
	MemoryLimit int    `json:"memory_limit,omitempty"` // MB
}

type executeResponse struct {
	Stdout   *string `json:"stdout"`
	Stderr   string  `json:"stderr"`
	ExitCode int     `json:"exitCode"`
}

// Execute submits the program and waits for the service's verdict
func (s *HTTPSandbox) Execute(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(executeRequest{
		Language:    req.Language,
		SourceCode:  req.Source,
		TimeLimit:   int(math.Ceil(req.TimeLimit.Seconds())),
		MemoryLimit: req.MemoryLimitMB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("execution service returned %d: %s", resp.StatusCode, firstLine(string(data)))
	}

	var result executeResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Stdout == nil {
		return nil, fmt.Errorf("malformed response: missing stdout")
	}

	return &Response{
		ExitCode: result.ExitCode,
		Stdout:   *result.Stdout,
		Stderr:   result.Stderr,
	}, nil
}
