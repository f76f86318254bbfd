package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/session"
)

// Client is a Go SDK for the practice-engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new practice-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: websocket.DefaultDialer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error envelope returned by the server
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// StartRequest configures a new session
type StartRequest struct {
	Topic         string `json:"topic,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	TimeLimit     int    `json:"time_limit"`
	QuestionCount int    `json:"question_count"`
}

// Started is the response of StartSession
type Started struct {
	Session  *models.Session      `json:"session"`
	Question *models.QuestionView `json:"question"`
}

// ListOptions contains options for listing sessions
type ListOptions struct {
	Topic  string
	State  string
	Limit  int
	Offset int
}

// Topics lists the practice topics
func (c *Client) Topics(ctx context.Context) ([]models.Topic, error) {
	var data struct {
		Topics []models.Topic `json:"topics"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/topics", nil, &data); err != nil {
		return nil, err
	}
	return data.Topics, nil
}

// StartSession starts a timed practice session
func (c *Client) StartSession(ctx context.Context, req StartRequest) (*Started, error) {
	var data Started
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListSessions lists stored sessions
func (c *Client) ListSessions(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	q := url.Values{}
	if opts.Topic != "" {
		q.Set("topic", opts.Topic)
	}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var data struct {
		Sessions []*models.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Sessions, nil
}

// GetSession returns a session snapshot
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id, ""), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CurrentQuestion returns the question on screen
func (c *Client) CurrentQuestion(ctx context.Context, id string) (*models.QuestionView, error) {
	var q models.QuestionView
	if err := c.do(ctx, http.MethodGet, sessionPath(id, "/question"), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Run executes code against the current question's examples
func (c *Client) Run(ctx context.Context, id, code string) (*models.NormalizedOutput, error) {
	var out models.NormalizedOutput
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/run"), codeBody{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit records code as the answer to the current question
func (c *Client) Submit(ctx context.Context, id, code string) (*session.SubmitOutcome, error) {
	var out session.SubmitOutcome
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/submit"), codeBody{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Next moves to the following question
func (c *Client) Next(ctx context.Context, id string) (*models.QuestionView, error) {
	var q models.QuestionView
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/next"), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Hint reveals the next hint of the current question
func (c *Client) Hint(ctx context.Context, id string) (string, error) {
	var data struct {
		Hint string `json:"hint"`
	}
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "/hint"), nil, &data); err != nil {
		return "", err
	}
	return data.Hint, nil
}

// Solution returns the reference solution of a submitted question
func (c *Client) Solution(ctx context.Context, id string) (string, error) {
	var data struct {
		Solution string `json:"solution"`
	}
	if err := c.do(ctx, http.MethodGet, sessionPath(id, "/solution"), nil, &data); err != nil {
		return "", err
	}
	return data.Solution, nil
}

// Pause stops the session countdown
func (c *Client) Pause(ctx context.Context, id string) (*models.Session, error) {
	return c.transition(ctx, id, "/pause")
}

// Resume restarts the session countdown
func (c *Client) Resume(ctx context.Context, id string) (*models.Session, error) {
	return c.transition(ctx, id, "/resume")
}

// End finishes the session
func (c *Client) End(ctx context.Context, id string) (*models.Session, error) {
	return c.transition(ctx, id, "/end")
}

// Stop aborts the session
func (c *Client) Stop(ctx context.Context, id string) (*models.Session, error) {
	return c.transition(ctx, id, "/stop")
}

func (c *Client) transition(ctx context.Context, id, action string) (*models.Session, error) {
	var s models.Session
	if err := c.do(ctx, http.MethodPost, sessionPath(id, action), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Events streams session events until ctx is canceled or the server
// closes the stream. The returned channel is closed when the stream ends.
func (c *Client) Events(ctx context.Context, id string) (<-chan session.Event, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + sessionPath(id, "/events")

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open event stream: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	events := make(chan session.Event, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev session.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

type codeBody struct {
	Code string `json:"code"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func sessionPath(id, action string) string {
	return "/api/v1/sessions/" + url.PathEscape(id) + action
}

// do performs an HTTP request and decodes the envelope data into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Code: "unknown", Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
