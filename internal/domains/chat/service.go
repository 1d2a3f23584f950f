package chat

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/telly/internal/config"
	"github.com/xpanvictor/telly/internal/domains/budget"
	"github.com/xpanvictor/telly/internal/repository/history"
	"github.com/xpanvictor/telly/internal/texts"
	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/assistant"
	"github.com/xpanvictor/telly/pkg/assistant/adapters"
	"github.com/xpanvictor/telly/pkg/assistant/router"
	"github.com/xpanvictor/telly/pkg/render"
	"github.com/xpanvictor/telly/pkg/telegram"
)

const defaultSystemPrompt = "You are a helpful assistant replying inside a chat app. Keep answers concise."

// typingInterval is how often the typing indicator is refreshed while an
// answer streams; the Bot API expires the indicator after ~5 seconds.
const typingInterval = 4500 * time.Millisecond

type Service interface {
	Respond(ctx context.Context, in telegram.IncomingMessage) error
	Reset(ctx context.Context, userID int64) error
	Balance(ctx context.Context, userID int64) (*budget.Summary, error)
}

type service struct {
	mux     *router.Mux
	budget  budget.Service
	history *history.Store
	tg      *telegram.Client
	cfg     *config.Settings
	logger  *Logger.Logger
}

func New(
	mux *router.Mux,
	budgetSvc budget.Service,
	historyStore *history.Store,
	tg *telegram.Client,
	cfg *config.Settings,
	logger *Logger.Logger,
) Service {
	return &service{
		mux:     mux,
		budget:  budgetSvc,
		history: historyStore,
		tg:      tg,
		cfg:     cfg,
		logger:  logger,
	}
}

// Respond implements Service. One call handles one incoming message end to
// end: budget gate, prompt assembly, streamed completion and rendering.
func (s *service) Respond(ctx context.Context, in telegram.IncomingMessage) error {
	userID := in.From.ID
	lang := s.cfg.Telegram.BotLanguage

	if err := s.budget.Touch(ctx, userID, in.From.UserName); err != nil {
		s.logger.Warnf("budget touch for user %d: %v", userID, err)
	}
	allowed, err := s.budget.Allow(ctx, userID)
	if err != nil {
		return err
	}
	if !allowed {
		_, err := s.tg.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:           in.Chat.ID,
			Text:             texts.Localized(lang, "budget_exceeded"),
			ReplyToMessageID: in.MessageID,
		})
		return err
	}

	input := s.buildInput(userID, in.Text)
	if err := s.history.Append(userID, string(adapters.USER), in.Text); err != nil {
		s.logger.Warnf("history append: %v", err)
	}

	deltas := make(adapters.ContractResponseChannel, 32)
	go s.mux.Stream(ctx, input, deltas)
	items := assistant.Cumulative(ctx, s.logger, deltas)
	if !s.cfg.Stream.Enabled {
		items = terminalOnly(ctx, items)
	}

	threadID := 0
	if in.IsTopicMessage {
		threadID = in.MessageThreadID
	}
	replyTo := 0
	if s.cfg.Telegram.EnableQuoting || in.Chat.IsGroup() {
		replyTo = in.MessageID
	}
	sink := telegram.NewChatSink(s.tg, in.Chat.ID, replyTo, threadID)

	driver := render.New(render.Config{
		MaxMessageSize:    s.cfg.Stream.MaxMessageSize,
		IsGroup:           in.Chat.IsGroup(),
		BackoffStep:       s.cfg.Stream.BackoffStep,
		TimeoutRetryDelay: s.cfg.Stream.TimeoutRetryDelay(),
		FailureSuffix:     texts.Localized(lang, "answer_failed"),
	}, s.logger, s.budget.ReporterFor(userID))

	// the typing indicator runs beside the render and both finish together
	typingCtx, stopTyping := context.WithCancel(ctx)
	typingDone := make(chan struct{})
	go func() {
		defer close(typingDone)
		s.typingLoop(typingCtx, in.Chat.ID, threadID)
	}()

	outcome := driver.Render(ctx, items, sink)
	stopTyping()
	<-typingDone

	return s.settle(ctx, in, outcome)
}

func (s *service) settle(ctx context.Context, in telegram.IncomingMessage, outcome render.Outcome) error {
	userID := in.From.ID
	switch outcome.Kind {
	case render.OutcomeRendered:
		if outcome.FinalText != "" {
			if err := s.history.Append(userID, string(adapters.ASSISTANT), outcome.FinalText); err != nil {
				s.logger.Warnf("history append: %v", err)
			}
		}
		return nil

	case render.OutcomeDirectHandled:
		if outcome.Direct.Format == render.FormatPath {
			if err := os.Remove(outcome.Direct.Value); err != nil && !os.IsNotExist(err) {
				s.logger.Warnf("cleanup of %s: %v", outcome.Direct.Value, err)
			}
		}
		return nil

	default:
		if errors.Is(outcome.Err, context.Canceled) {
			s.logger.Infof("stream for user %d cancelled", userID)
			return nil
		}
		s.logger.Errorf("stream for user %d failed: %v", userID, outcome.Err)
		if outcome.LastText == "" {
			// nothing was ever rendered; the user still gets an answer
			_, serr := s.tg.SendMessage(ctx, telegram.SendMessageParams{
				ChatID:           in.Chat.ID,
				Text:             texts.Localized(s.cfg.Telegram.BotLanguage, "answer_failed"),
				ReplyToMessageID: in.MessageID,
			})
			if serr != nil {
				s.logger.Warnf("failure notice: %v", serr)
			}
		}
		return outcome.Err
	}
}

func (s *service) buildInput(userID int64, text string) adapters.ContractInput {
	msgs := []adapters.ContractMessage{
		{Role: adapters.SYSTEM, Content: defaultSystemPrompt, CreatedAt: time.Now()},
	}
	entries, err := s.history.Recent(userID)
	if err != nil {
		s.logger.Warnf("history fetch: %v", err)
	}
	for _, e := range entries {
		msgs = append(msgs, adapters.ContractMessage{
			Role:      adapters.MsgRole(e.Role),
			Content:   e.Text,
			CreatedAt: e.At,
		})
	}
	msgs = append(msgs, adapters.ContractMessage{
		Role:      adapters.USER,
		Content:   text,
		CreatedAt: time.Now(),
	})
	// HandlerModel stays empty: each adapter falls back to its own
	// configured model, so the routed backend picks the right one.
	return adapters.ContractInput{
		ID:   uuid.New(),
		Msgs: msgs,
	}
}

func (s *service) typingLoop(ctx context.Context, chatID int64, threadID int) {
	t := time.NewTicker(typingInterval)
	defer t.Stop()
	for {
		if err := s.tg.SendChatAction(ctx, chatID, "typing", threadID); err != nil && ctx.Err() == nil {
			s.logger.Debugf("chat action: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Reset implements Service.
func (s *service) Reset(_ context.Context, userID int64) error {
	return s.history.Clear(userID)
}

// Balance implements Service.
func (s *service) Balance(ctx context.Context, userID int64) (*budget.Summary, error) {
	return s.budget.Summary(ctx, userID)
}

// terminalOnly collapses a stream to its final item for non-streaming
// deployments: intermediate renders are dropped, the terminal text, direct
// result or error passes through untouched.
func terminalOnly(ctx context.Context, in <-chan render.StreamItem) <-chan render.StreamItem {
	out := make(chan render.StreamItem, 1)
	go func() {
		defer close(out)
		var last render.StreamItem
		seen := false
		for {
			select {
			case <-ctx.Done():
				return
			case it, ok := <-in:
				if !ok {
					if seen {
						select {
						case out <- last:
						case <-ctx.Done():
						}
					}
					return
				}
				seen = true
				last = it
				if it.Err != nil || it.Direct != nil || it.Usage.Finished {
					select {
					case out <- it:
					case <-ctx.Done():
					}
					return
				}
			}
		}
	}()
	return out
}
