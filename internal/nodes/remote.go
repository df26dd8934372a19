package nodes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const defaultRemoteTimeout = 5 * time.Minute

// RemoteRequest — тело запроса к remote execution API.
type RemoteRequest struct {
	NodeID      string         `json:"nodeId"`
	NodeType    string         `json:"nodeType"`
	NodeData    map[string]any `json:"nodeData"`
	Inputs      map[string]any `json:"inputs"`
	ExecutionID string         `json:"executionId,omitempty"`
}

// RemoteResponse — тело ответа remote execution API.
// Заполнено ровно одно из полей Output / Error.
type RemoteResponse struct {
	Output any    `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Remote — обработчик, делегирующий выполнение узла remote API.
//
// Remote отправляет POST с RemoteRequest на URL и ожидает RemoteResponse.
// Non-2xx статус или непустое поле error считается ошибкой узла.
type Remote struct {
	url    string
	client *http.Client
}

// RemoteOption — опция Remote.
type RemoteOption func(*Remote)

// WithHTTPClient задаёт HTTP клиент.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		r.client = c
	}
}

// NewRemote создаёт обработчик remote API по адресу url.
func NewRemote(url string, opts ...RemoteOption) *Remote {
	r := &Remote{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: defaultRemoteTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL возвращает адрес remote API.
func (r *Remote) URL() string {
	return r.url
}

// Process выполняет узел через remote API.
func (r *Remote) Process(ctx context.Context, req *Request) (any, error) {
	body, err := json.Marshal(RemoteRequest{
		NodeID:      req.NodeID,
		NodeType:    req.NodeType,
		NodeData:    req.Data,
		Inputs:      req.Inputs,
		ExecutionID: req.ExecutionID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrRemoteCall, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRemoteCall, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteCall, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRemoteCall, err)
	}

	var out RemoteResponse
	decodeErr := json.Unmarshal(respBody, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := truncate(string(respBody), 200)
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrRemoteCall, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemoteCall, decodeErr)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("remote node %s: %s", req.NodeID, out.Error)
	}
	return out.Output, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
