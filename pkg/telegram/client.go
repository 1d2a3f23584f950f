package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/render"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a thin Bot API client. Transport failures are classified into
// the renderer's error taxonomy so the backoff controller can tell a flood
// wait from a broken request.
type Client struct {
	token  string
	base   string
	hc     *http.Client
	logger *Logger.Logger
}

func New(token string, logger *Logger.Logger) *Client {
	return &Client{
		token:  token,
		base:   defaultBaseURL,
		hc:     &http.Client{Timeout: 70 * time.Second},
		logger: logger,
	}
}

// NewWithBaseURL is used by tests to point the client at a fake server.
func NewWithBaseURL(token, base string, logger *Logger.Logger) *Client {
	c := New(token, logger)
	c.base = strings.TrimRight(base, "/")
	return c
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
}

// call posts params as JSON and decodes the result envelope.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, result)
}

func (c *Client) do(req *http.Request, method string, result any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return render.ErrTimeout
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !env.OK {
		return classifyAPIError(resp.StatusCode, env)
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// classifyAPIError maps Bot API failures onto the renderer's taxonomy.
func classifyAPIError(status int, env apiResponse) error {
	if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
		return &render.RateLimitedError{RetryAfter: time.Duration(env.Parameters.RetryAfter) * time.Second}
	}
	if status == http.StatusTooManyRequests || env.ErrorCode == http.StatusTooManyRequests {
		return &render.RateLimitedError{RetryAfter: time.Second}
	}
	if strings.Contains(strings.ToLower(env.Description), "message is not modified") {
		return render.ErrUnmodified
	}
	return fmt.Errorf("telegram: %s (code %d)", env.Description, env.ErrorCode)
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}

type GetUpdatesParams struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

func (c *Client) GetUpdates(ctx context.Context, params GetUpdatesParams) ([]Update, error) {
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type SendMessageParams struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID int    `json:"reply_to_message_id,omitempty"`
	MessageThreadID  int    `json:"message_thread_id,omitempty"`
	ParseMode        string `json:"parse_mode,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

type EditMessageTextParams struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func (c *Client) EditMessageText(ctx context.Context, params EditMessageTextParams) error {
	return c.call(ctx, "editMessageText", params, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// SendChatAction drives the typing indicator while a response streams.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string, threadID int) error {
	params := map[string]any{
		"chat_id": chatID,
		"action":  action,
	}
	if threadID != 0 {
		params["message_thread_id"] = threadID
	}
	return c.call(ctx, "sendChatAction", params, nil)
}

type mediaParams struct {
	ChatID           int64
	ReplyToMessageID int
	MessageThreadID  int
}

func (m mediaParams) fields() map[string]string {
	f := map[string]string{"chat_id": fmt.Sprintf("%d", m.ChatID)}
	if m.ReplyToMessageID != 0 {
		f["reply_to_message_id"] = fmt.Sprintf("%d", m.ReplyToMessageID)
	}
	if m.MessageThreadID != 0 {
		f["message_thread_id"] = fmt.Sprintf("%d", m.MessageThreadID)
	}
	return f
}

// SendPhotoURL sends a photo the API fetches itself.
func (c *Client) SendPhotoURL(ctx context.Context, p mediaParams, url string) error {
	params := p.fields()
	params["photo"] = url
	return c.call(ctx, "sendPhoto", params, nil)
}

// SendPhotoFile uploads a local photo via multipart form data.
func (c *Client) SendPhotoFile(ctx context.Context, p mediaParams, path string) error {
	return c.upload(ctx, "sendPhoto", "photo", path, p.fields())
}

func (c *Client) SendDocumentURL(ctx context.Context, p mediaParams, url string) error {
	params := p.fields()
	params["document"] = url
	return c.call(ctx, "sendDocument", params, nil)
}

func (c *Client) SendDocumentFile(ctx context.Context, p mediaParams, path string) error {
	return c.upload(ctx, "sendDocument", "document", path, p.fields())
}

// SendDice rolls one of the API's animated emoji.
func (c *Client) SendDice(ctx context.Context, p mediaParams, emoji string) error {
	params := p.fields()
	if emoji != "" {
		params["emoji"] = emoji
	}
	return c.call(ctx, "sendDice", params, nil)
}

func (c *Client) upload(ctx context.Context, method, field, path string, fields map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: open %s: %w", method, path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("%s: write field %s: %w", method, k, err)
		}
	}
	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("%s: create form file: %w", method, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("%s: copy file: %w", method, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%s: close multipart: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &buf)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, method, nil)
}
