package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/telly/internal/config"
	"github.com/xpanvictor/telly/internal/domains/chat"
	"github.com/xpanvictor/telly/internal/texts"
	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/payments/cryptomus"
	"github.com/xpanvictor/telly/pkg/telegram"
)

const pollRetryDelay = 3 * time.Second

// Bot runs the long-poll update loop and routes each update to either a
// command or the chat service. One answer streams per chat at a time; a
// newer message or /cancel stops the stream in flight.
type Bot struct {
	tg        *telegram.Client
	chat      chat.Service
	cryptomus *cryptomus.Client
	cfg       *config.Settings
	logger    *Logger.Logger

	mu       sync.Mutex
	inflight map[int64]*stream // keyed by chat id
}

type stream struct {
	cancel context.CancelFunc
}

func New(
	tg *telegram.Client,
	chatSvc chat.Service,
	cryptomusClient *cryptomus.Client,
	cfg *config.Settings,
	logger *Logger.Logger,
) *Bot {
	return &Bot{
		tg:        tg,
		chat:      chatSvc,
		cryptomus: cryptomusClient,
		cfg:       cfg,
		logger:    logger,
		inflight:  make(map[int64]*stream),
	}
}

// Run blocks on getUpdates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot update loop started")
	var offset int64
	for {
		updates, err := b.tg.GetUpdates(ctx, telegram.GetUpdatesParams{
			Offset:         offset,
			Timeout:        b.cfg.Telegram.PollTimeout,
			AllowedUpdates: []string{"message"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warnf("getUpdates: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
				continue
			}
			b.dispatch(ctx, *u.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, msg telegram.IncomingMessage) {
	if strings.HasPrefix(msg.Text, "/") {
		go b.handleCommand(ctx, msg)
		return
	}
	go b.answer(ctx, msg)
}

// answer streams one response. A previous stream for the same chat is
// cancelled first so the chat never has two answers racing.
func (b *Bot) answer(ctx context.Context, msg telegram.IncomingMessage) {
	streamCtx, cancel := context.WithCancel(ctx)
	st := &stream{cancel: cancel}
	b.swapInflight(msg.Chat.ID, st)
	defer b.clearInflight(msg.Chat.ID, st)

	if err := b.chat.Respond(streamCtx, msg); err != nil {
		b.logger.Warnf("respond in chat %d: %v", msg.Chat.ID, err)
	}
}

func (b *Bot) swapInflight(chatID int64, st *stream) {
	b.mu.Lock()
	prev := b.inflight[chatID]
	b.inflight[chatID] = st
	b.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
}

// clearInflight removes the entry only if it still belongs to this stream.
func (b *Bot) clearInflight(chatID int64, st *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st.cancel()
	if b.inflight[chatID] == st {
		delete(b.inflight, chatID)
	}
}

func (b *Bot) cancelInflight(chatID int64) bool {
	b.mu.Lock()
	st, ok := b.inflight[chatID]
	if ok {
		delete(b.inflight, chatID)
	}
	b.mu.Unlock()
	if ok {
		st.cancel()
	}
	return ok
}

func (b *Bot) handleCommand(ctx context.Context, msg telegram.IncomingMessage) {
	lang := b.cfg.Telegram.BotLanguage
	cmd, arg := parseCommand(msg.Text)

	var reply string
	switch cmd {
	case "start":
		reply = texts.Localized(lang, "start")
	case "help":
		reply = texts.Localized(lang, "help")
	case "reset":
		if err := b.chat.Reset(ctx, msg.From.ID); err != nil {
			b.logger.Warnf("reset for user %d: %v", msg.From.ID, err)
		}
		reply = texts.Localized(lang, "reset_done")
	case "cancel":
		if b.cancelInflight(msg.Chat.ID) {
			reply = texts.Localized(lang, "cancel_done")
		} else {
			reply = texts.Localized(lang, "cancel_nothing")
		}
	case "balance":
		reply = b.balanceReply(ctx, msg.From.ID)
	case "topup":
		reply = b.topupReply(ctx, msg.From.ID, arg)
	default:
		reply = texts.Localized(lang, "help")
	}

	if _, err := b.tg.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   reply,
	}); err != nil {
		b.logger.Warnf("command reply in chat %d: %v", msg.Chat.ID, err)
	}
}

func (b *Bot) balanceReply(ctx context.Context, userID int64) string {
	sum, err := b.chat.Balance(ctx, userID)
	if err != nil {
		b.logger.Warnf("balance for user %d: %v", userID, err)
		return texts.Localized(b.cfg.Telegram.BotLanguage, "answer_failed")
	}
	return fmt.Sprintf(
		"Balance: $%.4f\nSpent today: $%.4f\nSpent this month: $%.4f\nSpent all time: $%.4f\nRemaining: $%.4f",
		sum.Balance, sum.Day, sum.Month, sum.AllTime, sum.Balance-sum.AllTime,
	)
}

func (b *Bot) topupReply(ctx context.Context, userID int64, arg string) string {
	lang := b.cfg.Telegram.BotLanguage
	amount, err := strconv.ParseFloat(arg, 64)
	if err != nil || amount <= 0 {
		return texts.Localized(lang, "topup_usage")
	}
	invoice, err := b.cryptomus.CreateInvoice(ctx, cryptomus.InvoiceRequest{
		Amount:   strconv.FormatFloat(amount, 'f', 2, 64),
		Currency: "USD",
		OrderID:  fmt.Sprintf("%d:%s", userID, uuid.New()),
	})
	if err != nil {
		b.logger.Errorf("invoice for user %d: %v", userID, err)
		return texts.Localized(lang, "topup_failed")
	}
	return texts.Localized(lang, "topup_link") + "\n" + invoice.URL
}

// parseCommand splits "/cmd@botname arg" into ("cmd", "arg").
func parseCommand(text string) (string, string) {
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
