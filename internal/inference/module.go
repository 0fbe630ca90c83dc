package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/developer27/falconeye/internal/debug"
)

// ErrClosed is returned by Forward after Close.
var ErrClosed = errors.New("model closed")

// Module runs a forward pass and returns one logit per class.
type Module interface {
	Forward(ctx context.Context, input Tensor) ([]float32, error)
	Close() error
}

// HTTPModule forwards tensors to a TorchServe-style prediction endpoint.
// The endpoint receives {"shape": [...], "data": [...]} and answers
// {"logits": [...]}.
type HTTPModule struct {
	httpClient *http.Client
	endpoint   string

	mu     sync.RWMutex
	closed bool
}

type forwardResponse struct {
	Logits []float32 `json:"logits"`
	Error  string    `json:"error,omitempty"`
}

// NewHTTPModule returns a module for endpoint. A zero timeout defaults to 5s.
func NewHTTPModule(endpoint string, timeout time.Duration) (*HTTPModule, error) {
	if endpoint == "" {
		return nil, errors.New("model endpoint is empty")
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPModule{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
	}, nil
}

func (m *HTTPModule) Forward(ctx context.Context, input Tensor) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal tensor: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	debug.Verbose("Forward %v tensor to %s", input.Shape, m.endpoint)
	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("model error: %s", out.Error)
	}
	debug.Live("Forward done in %v: %d logits", time.Since(start).Round(time.Millisecond), len(out.Logits))
	return out.Logits, nil
}

// Close releases idle connections. Forward fails afterwards.
func (m *HTTPModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.httpClient.CloseIdleConnections()
	return nil
}

// Ping reports whether the endpoint answers at all.
func (m *HTTPModule) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
