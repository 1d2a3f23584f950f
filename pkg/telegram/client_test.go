package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/render"
)

func fakeAPI(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL("test-token", srv.URL, Logger.New(true)), srv
}

func TestSendMessageDecodesResult(t *testing.T) {
	c, _ := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var params SendMessageParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Fatalf("decode params: %v", err)
		}
		if params.Text != "hello" || params.ChatID != 42 {
			t.Fatalf("params = %+v", params)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 7, "chat": map[string]any{"id": 42}},
		})
	})

	msg, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 42, Text: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.MessageID != 7 {
		t.Fatalf("message id = %d, want 7", msg.MessageID)
	}
}

func TestRateLimitClassifiedWithRetryAfter(t *testing.T) {
	c, _ := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  429,
			"description": "Too Many Requests: retry after 5",
			"parameters":  map[string]any{"retry_after": 5},
		})
	})

	err := c.EditMessageText(context.Background(), EditMessageTextParams{ChatID: 1, MessageID: 2, Text: "x"})
	var rl *render.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != 5*time.Second {
		t.Fatalf("retry after = %v, want 5s", rl.RetryAfter)
	}
}

func TestUnmodifiedEditClassified(t *testing.T) {
	c, _ := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: message is not modified",
		})
	})

	err := c.EditMessageText(context.Background(), EditMessageTextParams{ChatID: 1, MessageID: 2, Text: "same"})
	if !errors.Is(err, render.ErrUnmodified) {
		t.Fatalf("err = %v, want ErrUnmodified", err)
	}
}

func TestOtherAPIErrorStaysGeneric(t *testing.T) {
	c, _ := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: chat not found",
		})
	})

	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	if err == nil {
		t.Fatalf("want error for chat not found")
	}
	var rl *render.RateLimitedError
	if errors.As(err, &rl) || errors.Is(err, render.ErrUnmodified) || errors.Is(err, render.ErrTimeout) {
		t.Fatalf("generic API error misclassified: %v", err)
	}
}

func TestChatSinkDeliversDirectPayloads(t *testing.T) {
	var gotMethod string
	var gotPhoto string
	c, _ := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.URL.Path
		var params map[string]any
		json.NewDecoder(r.Body).Decode(&params)
		if v, ok := params["photo"].(string); ok {
			gotPhoto = v
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	})

	sink := NewChatSink(c, 42, 0, 0)
	err := sink.DeliverDirect(context.Background(), render.DirectResult{
		Kind: render.DirectPhoto, Format: render.FormatURL, Value: "http://x/y.png",
	})
	if err != nil {
		t.Fatalf("DeliverDirect: %v", err)
	}
	if gotMethod != "/bottest-token/sendPhoto" {
		t.Fatalf("method = %s, want sendPhoto", gotMethod)
	}
	if gotPhoto != "http://x/y.png" {
		t.Fatalf("photo = %q", gotPhoto)
	}
}

func TestChatSinkUnknownKindRejected(t *testing.T) {
	sink := NewChatSink(New("t", Logger.New(true)), 1, 0, 0)
	if err := sink.DeliverDirect(context.Background(), render.DirectResult{Kind: "hologram"}); err == nil {
		t.Fatalf("want error for unknown direct result kind")
	}
}
