package sdk

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

	"github.com/google/uuid"
)

// Client caseflow HTTP API 客户端
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryConfig
}

// NewClient 创建客户端
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Retry: DefaultRetryConfig(),
	}
}

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Temporary 5xx 与 429 视为可重试
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// CreateCase 创建病例。
// 仅在调用方指定 CaseID 时重试，未指定 id 的创建只发送一次
func (c *Client) CreateCase(ctx context.Context, req CreateCaseRequest) (*Case, error) {
	var out Case
	if err := c.do(ctx, http.MethodPost, "/api/v1/cases", req, &out, req.CaseID != nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCase 查询病例
func (c *Client) GetCase(ctx context.Context, caseID uuid.UUID) (*Case, error) {
	var out Case
	if err := c.do(ctx, http.MethodGet, "/api/v1/cases/"+caseID.String(), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransitionCase 病例状态迁移；非法迁移返回 StatusCode=409 的 APIError。不重试
func (c *Client) TransitionCase(ctx context.Context, caseID uuid.UUID, to, actor string) (*TransitionResponse, error) {
	var out TransitionResponse
	body := map[string]string{"to": to, "actor": actor}
	if err := c.do(ctx, http.MethodPost, "/api/v1/cases/"+caseID.String()+"/transition", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnqueueJob 作业入队；unique 入队被跳过时 Enqueued=false 且 Job 为 nil。
// 入队不重试，响应丢失时由调用方决定是否以 Unique 重新提交
func (c *Client) EnqueueJob(ctx context.Context, req EnqueueJobRequest) (*EnqueueJobResponse, error) {
	var out EnqueueJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob 查询作业
func (c *Client) GetJob(ctx context.Context, id int64) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+strconv.FormatInt(id, 10), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs 按条件查询作业
func (c *Client) ListJobs(ctx context.Context, f ListJobsFilter) ([]Job, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.JobType != "" {
		q.Set("job_type", f.JobType)
	}
	if f.CaseID != nil {
		q.Set("case_id", f.CaseID.String())
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/api/v1/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Items []Job `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// JobStats 按状态统计作业
func (c *Client) JobStats(ctx context.Context) (*JobStats, error) {
	var out JobStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/stats", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendSignal 提交外部确认信号；服务端按 CAS 判定，重复提交安全
func (c *Client) SendSignal(ctx context.Context, req SignalRequest) (*SignalResult, error) {
	var out SignalResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/signals", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// do 发送请求并解码响应；idempotent 为 true 时可重试错误按 Retry 配置重试
func (c *Client) do(ctx context.Context, method, path string, in, out any, idempotent bool) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = b
	}

	if !idempotent {
		err := c.once(ctx, method, path, body, out)
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		return err
	}
	return withRetry(ctx, c.Retry, method+" "+path, func(ctx context.Context) error {
		return c.once(ctx, method, path, body, out)
	})
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		msg := string(raw)
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
		if apiErr.Temporary() {
			return apiErr
		}
		return permanent(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
