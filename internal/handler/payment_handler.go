package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yourusername/quiz-engine/internal/service"
)

// PaymentHandler принимает уведомления платежного шлюза
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler создает обработчик платежей
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PaymentWebhookRequest - тело уведомления шлюза
type PaymentWebhookRequest struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id" binding:"required"`
	QuizID    uint            `json:"quiz_id" binding:"required"`
	UserID    uint            `json:"user_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status" binding:"required"`
}

// HandleWebhook сохраняет транзакцию и подтверждает участие при списании
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.paymentService.HandleWebhook(c.Request.Context(), service.PaymentWebhook{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		QuizID:    req.QuizID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Status:    req.Status,
	})
	if err != nil {
		log.Printf("[PaymentHandler] Ошибка обработки платежа %s (викторина #%d, пользователь #%d): %v",
			req.PaymentID, req.QuizID, req.UserID, err)
		respondError(c, "PaymentHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
