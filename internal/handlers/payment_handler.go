package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/telly/internal/domains/budget"
	"github.com/xpanvictor/telly/internal/texts"
	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/payments/cryptomus"
	"github.com/xpanvictor/telly/pkg/payments/tlync"
	"github.com/xpanvictor/telly/pkg/telegram"
)

// PaymentHandler receives provider webhooks and credits the prepaid
// ledger. Order references carry the telegram user id as "<userID>:<nonce>".
type PaymentHandler struct {
	budget    budget.Service
	cryptomus *cryptomus.Client
	tlync     *tlync.Client
	tg        *telegram.Client
	lang      string
	logger    *Logger.Logger
}

func NewPaymentHandler(
	budgetSvc budget.Service,
	cryptomusClient *cryptomus.Client,
	tlyncClient *tlync.Client,
	tg *telegram.Client,
	lang string,
	logger *Logger.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		budget:    budgetSvc,
		cryptomus: cryptomusClient,
		tlync:     tlyncClient,
		tg:        tg,
		lang:      lang,
		logger:    logger,
	}
}

// notifyUser tells the payer their balance updated. A private chat id is
// the user id, so no chat lookup is needed. Best-effort only.
func (h *PaymentHandler) notifyUser(c *gin.Context, userID int64) {
	if h.tg == nil {
		return
	}
	_, err := h.tg.SendMessage(c.Request.Context(), telegram.SendMessageParams{
		ChatID: userID,
		Text:   texts.Localized(h.lang, "payment_ok"),
	})
	if err != nil {
		h.logger.Warnf("payment notice for user %d: %v", userID, err)
	}
}

// userIDFromRef extracts the telegram user id from an order reference.
func userIDFromRef(ref string) (int64, bool) {
	head, _, _ := strings.Cut(ref, ":")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// HandleCryptomusWebhook verifies the payload signature before touching
// the ledger; a tampered body never reaches Credit.
func (h *PaymentHandler) HandleCryptomusWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}
	payment, err := h.cryptomus.VerifyWebhook(raw)
	if err != nil {
		h.logger.Warnf("cryptomus webhook rejected: %v", err)
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "signature mismatch"})
		return
	}
	if payment.Status != "paid" && payment.Status != "paid_over" {
		c.JSON(http.StatusOK, SuccessResponse{Message: "ignored"})
		return
	}
	userID, ok := userIDFromRef(payment.OrderID)
	if !ok {
		h.logger.Errorf("cryptomus webhook with unparseable order id %q", payment.OrderID)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad order id"})
		return
	}
	amount, err := strconv.ParseFloat(payment.Amount, 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad amount"})
		return
	}
	if err := h.budget.Credit(c.Request.Context(), userID, amount, "cryptomus"); err != nil {
		h.logger.Errorf("crediting user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "credit failed"})
		return
	}
	h.notifyUser(c, userID)
	c.JSON(http.StatusOK, SuccessResponse{Message: "credited"})
}

// HandleTlyncWebhook credits a settled tlync checkout.
func (h *PaymentHandler) HandleTlyncWebhook(c *gin.Context) {
	var result tlync.WebhookResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad payload"})
		return
	}
	if result.Status != "success" {
		c.JSON(http.StatusOK, SuccessResponse{Message: "ignored"})
		return
	}
	userID, ok := userIDFromRef(result.CustomRef)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad custom ref"})
		return
	}
	if result.Amount <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad amount"})
		return
	}
	if err := h.budget.Credit(c.Request.Context(), userID, result.Amount, "tlync"); err != nil {
		h.logger.Errorf("crediting user %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "credit failed"})
		return
	}
	h.notifyUser(c, userID)
	c.JSON(http.StatusOK, SuccessResponse{Message: "credited"})
}

// InitiateTlyncRequest starts a hosted tlync checkout for a user.
type InitiateTlyncRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Phone  string  `json:"phone"`
	Email  string  `json:"email"`
}

// InitiateTlyncResponse carries the hosted checkout URL.
type InitiateTlyncResponse struct {
	URL string `json:"url"`
}

func (h *PaymentHandler) HandleTlyncInitiate(c *gin.Context) {
	var req InitiateTlyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad payload", Details: err.Error()})
		return
	}
	payment, err := h.tlync.InitiatePayment(c.Request.Context(), tlync.PaymentRequest{
		Amount:    req.Amount,
		Phone:     req.Phone,
		Email:     req.Email,
		CustomRef: strconv.FormatInt(req.UserID, 10),
	})
	if err != nil {
		h.logger.Errorf("tlync initiate for user %d: %v", req.UserID, err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, InitiateTlyncResponse{URL: payment.URL})
}
