//go:build functional

// Package functional provides black-box tests for the REST API and the
// WebSocket gesture session against a running server.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vkuznetsov/todolist/internal/config"
	"github.com/vkuznetsov/todolist/internal/engine"
	"github.com/vkuznetsov/todolist/internal/model"
	"github.com/vkuznetsov/todolist/internal/server"
	"github.com/vkuznetsov/todolist/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestServerHost    = "TEST_SERVER_HOST"
	EnvTestServerPort    = "TEST_SERVER_PORT"
	EnvTestTimeout       = "TEST_TIMEOUT"
	EnvTestLogLevel      = "TEST_LOG_LEVEL"
	EnvTestMetricsEnable = "TEST_METRICS_ENABLED"
)

// Default test configuration values.
const (
	DefaultTestHost         = "localhost"
	DefaultTestPort         = 0 // 0 means auto-assign
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultLogLevel         = "error"
	DefaultMetricsEnabled   = false
	DefaultLocalOwner       = "local"
)

// TestConfig holds test configuration loaded from environment.
type TestConfig struct {
	Host           string
	Port           int
	Timeout        time.Duration
	LogLevel       string
	MetricsEnabled bool
}

// LoadTestConfig loads test configuration from environment variables,
// falling back to defaults for unset or unparsable values.
func LoadTestConfig() *TestConfig {
	cfg := &TestConfig{
		Host:           envOr(EnvTestServerHost, DefaultTestHost),
		Port:           DefaultTestPort,
		Timeout:        DefaultTestTimeout,
		LogLevel:       envOr(EnvTestLogLevel, DefaultLogLevel),
		MetricsEnabled: DefaultMetricsEnabled,
	}

	if port, err := strconv.Atoi(os.Getenv(EnvTestServerPort)); err == nil {
		cfg.Port = port
	}
	if timeout, err := time.ParseDuration(os.Getenv(EnvTestTimeout)); err == nil {
		cfg.Timeout = timeout
	}
	if enabled, err := strconv.ParseBool(os.Getenv(EnvTestMetricsEnable)); err == nil {
		cfg.MetricsEnabled = enabled
	}

	return cfg
}

func envOr(name, fallback string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return fallback
}

// TestServer runs a real server on a loopback port with a memory store
// and no authentication, the local single-owner mode.
type TestServer struct {
	Server   *server.Server
	Store    *store.MemoryStore
	Sessions *engine.Registry
	BaseURL  string
	WSURL    string
	Port     int
	listener net.Listener
	t        *testing.T
	mu       sync.Mutex
	started  bool
}

// NewTestServer builds a test server on an auto-assigned port. Call
// Start to run it.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testCfg := LoadTestConfig()

	// Bind first to claim a free port; the listener is closed again in
	// Start just before the server takes the address over.
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", testCfg.Host, testCfg.Port))
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	cfg := &config.Config{
		ServerPort:      port,
		LogLevel:        testCfg.LogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  testCfg.MetricsEnabled,
		AuthMode:        "none",
		TLSClientAuth:   "none",
		StoreBackend:    "memory",
		LocalOwnerID:    DefaultLocalOwner,
	}

	logger := zap.NewNop()
	todoStore := store.NewMemoryStore()
	sessions := engine.NewRegistry(todoStore, logger)

	return &TestServer{
		Server:   server.New(cfg, logger, sessions, nil),
		Store:    todoStore,
		Sessions: sessions,
		BaseURL:  fmt.Sprintf("http://%s:%d", testCfg.Host, port),
		WSURL:    fmt.Sprintf("ws://%s:%d", testCfg.Host, port),
		Port:     port,
		listener: listener,
		t:        t,
	}
}

// Start runs the server and blocks until it answers health checks.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	ts.listener.Close()

	go func() {
		if err := ts.Server.Start(); err != nil && err != http.ErrServerClosed {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.waitForReady()
	ts.started = true
}

func (ts *TestServer) waitForReady() {
	deadline := time.Now().Add(DefaultTestTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	ts.t.Fatalf("Server did not become ready within timeout")
}

// Stop shuts the server down gracefully.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}

	ts.started = false
}

// Reset discards the local owner's session so the next request starts
// from a fresh engine.
func (ts *TestServer) Reset() {
	ts.Sessions.Release(DefaultLocalOwner)
}

// HTTPClient is a thin JSON-aware client for the test server.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	t       *testing.T
}

// NewHTTPClient creates a client bound to the test server base URL.
func NewHTTPClient(t *testing.T, baseURL string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		baseURL: baseURL,
		t:       t,
	}
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = bytes.NewBufferString(v)
		case []byte:
			reader = bytes.NewBuffer(v)
		default:
			encoded, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			reader = bytes.NewBuffer(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, headers)
}

// Post performs a POST request with an optional JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, headers)
}

// Put performs a PUT request with an optional JSON body.
func (c *HTTPClient) Put(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body, headers)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, headers)
}

// APIResponse mirrors the server's response envelope with the data
// payload left raw for per-test decoding.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorResponse mirrors the server's error payload.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ParseAPIResponse decodes the response envelope.
func ParseAPIResponse(body []byte) (*APIResponse, error) {
	var resp APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return &resp, nil
}

// ParseErrorResponse decodes an error payload.
func ParseErrorResponse(body []byte) (*ErrorResponse, error) {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse error response: %w", err)
	}
	return &resp, nil
}

// ParseTodo decodes a todo from envelope data.
func ParseTodo(data json.RawMessage) (*model.Todo, error) {
	var todo model.Todo
	if err := json.Unmarshal(data, &todo); err != nil {
		return nil, fmt.Errorf("failed to parse todo: %w", err)
	}
	return &todo, nil
}

// ParseListState decodes a list state snapshot from envelope data.
func ParseListState(data json.RawMessage) (*model.ListState, error) {
	var state model.ListState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse list state: %w", err)
	}
	return &state, nil
}
