package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaiso/Nodeflow/internal/api"
	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/executor"
)

// ListExecutionsOpts — параметры фильтрации истории.
type ListExecutionsOpts struct {
	Status   string
	Workflow string
	Limit    int
	Offset   int
	Archive  bool
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая сервером.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Nodeflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
//
// timeout ограничивает весь запрос, включая синхронное выполнение
// workflow. 0 — без ограничения.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Executions ---

// Execute запускает workflow на сервере и ждёт завершения.
func (c *Client) Execute(req api.ExecuteRequest) (*domain.Execution, error) {
	var exec domain.Execution
	if err := c.post("/api/v1/executions", req, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// ListExecutions возвращает последние выполнения.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]api.ExecutionSummary, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Workflow != "" {
		params.Set("workflow", opts.Workflow)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Archive {
		params.Set("source", "archive")
	}

	var execs []api.ExecutionSummary
	err := c.list("/api/v1/executions", params, &execs)
	return execs, err
}

// GetExecution возвращает выполнение по ID.
func (c *Client) GetExecution(id string) (*domain.Execution, error) {
	var exec domain.Execution
	if err := c.get("/api/v1/executions/"+url.PathEscape(id), &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// --- Control ---

// Status возвращает состояние контроллера.
func (c *Client) Status() (*executor.Status, error) {
	var status executor.Status
	err := c.get("/api/v1/status", &status)
	return &status, err
}

// Pause приостанавливает выполнение.
func (c *Client) Pause() (string, error) {
	return c.control("/api/v1/pause")
}

// Resume продолжает выполнение.
func (c *Client) Resume() (string, error) {
	return c.control("/api/v1/resume")
}

// Stop останавливает выполнение.
func (c *Client) Stop() (string, error) {
	return c.control("/api/v1/stop")
}

// Stats возвращает статистику выполнений.
func (c *Client) Stats() (*executor.Stats, error) {
	var stats executor.Stats
	err := c.get("/api/v1/stats", &stats)
	return &stats, err
}

// ClearCache очищает кэш результатов.
func (c *Client) ClearCache() error {
	return c.delete("/api/v1/cache")
}

// --- Workflows ---

// Validate проверяет workflow на сервере. hcl задаёт формат body.
func (c *Client) Validate(body []byte, hcl bool) (*api.ValidateResponse, error) {
	contentType := "application/json"
	if hcl {
		contentType = "application/hcl"
	}

	resp, err := c.doRaw(http.MethodPost, "/api/v1/workflows/validate", contentType, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var v api.ValidateResponse
	if err := c.decodeData(resp, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// NodeTypes возвращает типы узлов, зарегистрированные на сервере.
func (c *Client) NodeTypes() (*api.NodeTypesResponse, error) {
	var types api.NodeTypesResponse
	err := c.get("/api/v1/node-types", &types)
	return &types, err
}

// --- HTTP helpers ---

func (c *Client) control(path string) (string, error) {
	var resp api.ControlResponse
	err := c.post(path, nil, &resp)
	return resp.Status, err
}

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decodeData(resp, result)
}

func (c *Client) decodeData(resp *http.Response, result any) error {
	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	if body == nil {
		return c.doRaw(method, path, "", nil)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doRaw(method, path, "application/json", bytes.NewReader(data))
}

func (c *Client) doRaw(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
