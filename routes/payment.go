package routes

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"shortstay-server/utils"

	"github.com/kataras/iris/v12"
)

// PaymentWebhookInput is the payment provider's charge notification. The
// endpoint is public; authenticity comes from the HMAC signature header, not
// from any caller identity.
type PaymentWebhookInput struct {
	BookingID     uint   `json:"bookingId" validate:"required"`
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	PaymentStatus string `json:"paymentStatus" validate:"required"`
}

const signatureHeader = "X-Webhook-Signature"

// ConfirmPayment handles the provider's payment webhook. The raw body is
// verified against the shared secret before the payload is trusted, and the
// underlying transition is idempotent so redeliveries are harmless.
func ConfirmPayment(ctx iris.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, 1<<20))
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Unable to read request body", ctx)
		return
	}

	if !verifyWebhookSignature(body, ctx.GetHeader(signatureHeader), Cfg.WebhookSecret) {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid webhook signature", ctx)
		return
	}

	var input PaymentWebhookInput
	if err := json.Unmarshal(body, &input); err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Malformed webhook payload", ctx)
		return
	}
	if input.BookingID == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "bookingId is required", ctx)
		return
	}

	// Only successful charges move the booking; anything else is
	// acknowledged so the provider stops retrying.
	if input.PaymentStatus != "completed" && input.PaymentStatus != "success" {
		ctx.JSON(iris.Map{"received": true})
		return
	}

	booking, confirmErr := Bookings.ConfirmPayment(input.BookingID, input.OrderID, input.TransactionID)
	if confirmErr != nil {
		writeServiceError(confirmErr, ctx)
		return
	}

	ctx.JSON(iris.Map{"received": true, "status": booking.Status})
}

func verifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhookPayload computes the signature the provider is expected to send.
// Exposed for tests and for local tooling that replays webhooks.
func SignWebhookPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
