// Package notify 外部频道消息发送，以及依赖发送的作业处理函数。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Messenger 聊天传输边界
type Messenger interface {
	// PostReply 在 room 中回复 replyTo 指向的消息，返回新消息引用
	PostReply(ctx context.Context, room, replyTo, body string) (string, error)

	// Post 在 room 中发送消息，返回新消息引用
	Post(ctx context.Context, room, body string) (string, error)

	// Redact 撤回消息
	Redact(ctx context.Context, room, ref string) error
}

// 发送动作
const (
	actionPost   = "post"
	actionReply  = "reply"
	actionRedact = "redact"
)

// webhookRequest Webhook 请求体
type webhookRequest struct {
	Action     string `json:"action"`
	Room       string `json:"room"`
	Body       string `json:"body,omitempty"`
	ReplyTo    string `json:"reply_to,omitempty"`
	MessageRef string `json:"message_ref,omitempty"`
}

// webhookResponse Webhook 响应体
type webhookResponse struct {
	MessageRef string `json:"message_ref"`
}

// WebhookMessenger 以 JSON POST 方式把消息交给外部网关
type WebhookMessenger struct {
	url    string
	client *http.Client
}

// NewWebhookMessenger 创建 Webhook 发送器；timeout<=0 时使用 10s
func NewWebhookMessenger(url string, timeout time.Duration) *WebhookMessenger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookMessenger{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (m *WebhookMessenger) PostReply(ctx context.Context, room, replyTo, body string) (string, error) {
	return m.send(ctx, webhookRequest{Action: actionReply, Room: room, ReplyTo: replyTo, Body: body})
}

func (m *WebhookMessenger) Post(ctx context.Context, room, body string) (string, error) {
	return m.send(ctx, webhookRequest{Action: actionPost, Room: room, Body: body})
}

func (m *WebhookMessenger) Redact(ctx context.Context, room, ref string) error {
	_, err := m.send(ctx, webhookRequest{Action: actionRedact, Room: room, MessageRef: ref})
	return err
}

func (m *WebhookMessenger) send(ctx context.Context, payload webhookRequest) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", payload.Action, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s request failed with status %d: %s", payload.Action, resp.StatusCode, string(body))
	}
	if payload.Action == actionRedact {
		return "", nil
	}

	var out webhookResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.MessageRef == "" {
		return "", errors.New("response missing message_ref")
	}
	return out.MessageRef, nil
}

// LogMessenger 只写日志的发送器（未配置 Webhook 时使用）
type LogMessenger struct {
	log zerolog.Logger
}

func NewLogMessenger(log zerolog.Logger) *LogMessenger {
	return &LogMessenger{log: log}
}

func (m *LogMessenger) PostReply(_ context.Context, room, replyTo, body string) (string, error) {
	ref := "$" + uuid.NewString()
	m.log.Info().
		Str("room", room).
		Str("reply_to", replyTo).
		Str("message_ref", ref).
		Str("body", body).
		Msg("发送回复消息")
	return ref, nil
}

func (m *LogMessenger) Post(_ context.Context, room, body string) (string, error) {
	ref := "$" + uuid.NewString()
	m.log.Info().
		Str("room", room).
		Str("message_ref", ref).
		Str("body", body).
		Msg("发送消息")
	return ref, nil
}

func (m *LogMessenger) Redact(_ context.Context, room, ref string) error {
	m.log.Info().Str("room", room).Str("message_ref", ref).Msg("撤回消息")
	return nil
}

var (
	_ Messenger = (*WebhookMessenger)(nil)
	_ Messenger = (*LogMessenger)(nil)
)
