// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/services"
	"github.com/licenseforge/licenseforge/internal/utils"
)

type WebhookHandler struct {
	orderService *services.OrderService
	config       *config.Config
}

func NewWebhookHandler(orderService *services.OrderService, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		orderService: orderService,
		config:       cfg,
	}
}

// HandleStripeWebhook verifies the event signature and issues licenses
// for completed checkouts. Unknown event types are acknowledged so
// Stripe stops retrying them.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read payload", nil)
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.config.Payment.StripeWebhookSecret)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed", nil)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			utils.BadRequestResponse(c, "Malformed event payload", nil)
			return
		}

		issued, err := h.orderService.HandleCheckoutCompleted(session.ID)
		if err != nil {
			logrus.WithError(err).WithField("session", session.ID).Error("Failed to issue licenses for order")
			utils.InternalErrorResponse(c, "")
			return
		}

		utils.SuccessResponse(c, gin.H{"issued": len(issued)})

	default:
		utils.SuccessResponse(c, gin.H{"skipped": string(event.Type)})
	}
}

// BackfillOrders runs one page of the past-order issuance tool and
// returns the cursor for the next call.
func (h *WebhookHandler) BackfillOrders(c *gin.Context) {
	var req struct {
		Cursor    services.BackfillCursor `json:"cursor"`
		BatchSize int                     `json:"batch_size"`
	}
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.orderService.BackfillPastOrders(req.Cursor, req.BatchSize)
	if err != nil {
		utils.MapErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}
