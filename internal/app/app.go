package app

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/telly/internal/bot"
	"github.com/xpanvictor/telly/internal/config"
	"github.com/xpanvictor/telly/internal/domains/budget"
	"github.com/xpanvictor/telly/internal/domains/chat"
	"github.com/xpanvictor/telly/internal/repository/history"
	usageRepo "github.com/xpanvictor/telly/internal/repository/usage"
	"github.com/xpanvictor/telly/internal/server"
	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/assistant/router"
	"github.com/xpanvictor/telly/pkg/payments/cryptomus"
	"github.com/xpanvictor/telly/pkg/payments/tlync"
	"github.com/xpanvictor/telly/pkg/telegram"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config    *config.Settings
	Logger    *Logger.Logger
	DB        *gorm.DB
	RC        *redis.Client
	LLMRouter *router.Mux
	// repos
	UsageRepo    budget.Repository
	HistoryStore *history.Store
	// services
	BudgetService budget.Service
	ChatService   chat.Service
	// edges
	Telegram   *telegram.Client
	Bot        *bot.Bot
	ServerDeps server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies() error {
	if err := a.setupLLMRouter(); err != nil {
		return err
	}

	a.UsageRepo = usageRepo.NewGormUsageRepo(a.DB, a.RC)
	a.HistoryStore = history.New(
		a.RC,
		a.Config.Budget.HistoryWindow,
		time.Duration(a.Config.Budget.HistoryTTLMins)*time.Minute,
	)

	a.BudgetService = budget.New(
		a.UsageRepo,
		a.Config.Budget.TokenPrice,
		a.Config.Budget.InitialBalance,
		a.Logger,
	)

	a.Telegram = telegram.New(a.Config.Telegram.Token, a.Logger)
	a.ChatService = chat.New(a.LLMRouter, a.BudgetService, a.HistoryStore, a.Telegram, a.Config, a.Logger)

	cryptomusClient := cryptomus.New(
		a.Config.Payments.Cryptomus.MerchantID,
		a.Config.Payments.Cryptomus.APIKey,
		a.Config.Payments.Cryptomus.BaseURL,
	)
	tlyncClient := tlync.New(
		a.Config.Payments.Tlync.Token,
		a.Config.Payments.Tlync.StoreID,
		a.Config.Payments.Tlync.BaseURL,
	)

	a.Bot = bot.New(a.Telegram, a.ChatService, cryptomusClient, a.Config, a.Logger)
	a.ServerDeps = server.NewServerDependencies(
		a.BudgetService,
		cryptomusClient,
		tlyncClient,
		a.Telegram,
		a.Logger,
		a.Config,
	)

	return nil
}

// setupLLMRouter configures the LLM providers and creates the router
func (a *App) setupLLMRouter() error {
	factory := NewLLMRouterFactory(a.Config, a.Logger)
	mux, err := factory.CreateRouter()
	if err != nil {
		return err
	}
	a.LLMRouter = mux
	return nil
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}
