package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/telly/internal/config"
	"github.com/xpanvictor/telly/internal/domains/budget"
	"github.com/xpanvictor/telly/internal/handlers"
	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/payments/cryptomus"
	"github.com/xpanvictor/telly/pkg/payments/tlync"
	"github.com/xpanvictor/telly/pkg/telegram"
)

type Dependencies struct {
	BudgetService budget.Service
	Cryptomus     *cryptomus.Client
	Tlync         *tlync.Client
	Telegram      *telegram.Client
	Logger        *Logger.Logger
	Configs       *config.Settings
}

func NewServerDependencies(
	budgetService budget.Service,
	cryptomusClient *cryptomus.Client,
	tlyncClient *tlync.Client,
	tg *telegram.Client,
	logger *Logger.Logger,
	cfg *config.Settings,
) Dependencies {
	return Dependencies{
		BudgetService: budgetService,
		Cryptomus:     cryptomusClient,
		Tlync:         tlyncClient,
		Telegram:      tg,
		Logger:        logger,
		Configs:       cfg,
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) {
	r.GET("/", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"message": "Server healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	paymentHandler := handlers.NewPaymentHandler(
		dep.BudgetService,
		dep.Cryptomus,
		dep.Tlync,
		dep.Telegram,
		dep.Configs.Telegram.BotLanguage,
		dep.Logger,
	)

	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/cryptomus", paymentHandler.HandleCryptomusWebhook)
		webhooks.POST("/tlync", paymentHandler.HandleTlyncWebhook)
	}

	payments := r.Group("/payments")
	{
		payments.POST("/tlync/initiate", paymentHandler.HandleTlyncInitiate)
	}
}
