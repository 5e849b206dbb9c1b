// README: Payment provider webhook; unauthenticated, optionally guarded by a shared secret.
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vanbora/internal/modules/webhook"
)

const HeaderWebhookSecret = "X-Webhook-Secret"

var errBadSecret = errorResponse{Error: "invalid webhook secret", Code: "unauthenticated"}

type WebhookHandler struct {
	ingress *webhook.Ingress
	secret  []byte
}

// NewWebhookHandler checks X-Webhook-Secret against secret when secret is non-empty.
func NewWebhookHandler(ingress *webhook.Ingress, secret string) *WebhookHandler {
	return &WebhookHandler{ingress: ingress, secret: []byte(secret)}
}

// notification accepts both {"data":{"id":...}} and {"id":...}; ids may be numbers.
type notification struct {
	Type string `json:"type"`
	ID   json.RawMessage `json:"id"`
	Data struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (h *WebhookHandler) paymentID(c *gin.Context) string {
	if id := c.Query("data.id"); id != "" {
		return id
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var n notification
		if json.Unmarshal(body, &n) == nil {
			if id := rawID(n.Data.ID); id != "" {
				return id
			}
			if id := rawID(n.ID); id != "" {
				return id
			}
		}
	}
	return c.Query("id")
}

// Payments handles POST /api/webhooks/payments.
func (h *WebhookHandler) Payments(c *gin.Context) {
	if len(h.secret) > 0 {
		got := []byte(c.GetHeader(HeaderWebhookSecret))
		if subtle.ConstantTimeCompare(got, h.secret) != 1 {
			writeJSON(c, http.StatusUnauthorized, errBadSecret)
			return
		}
	}
	// A delivery without a payment id can never match; Handle acks it as ignored.
	res, err := h.ingress.Handle(c.Request.Context(), h.paymentID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"outcome": res.Outcome}
	if res.ReservationID != "" {
		resp["reservation_id"] = res.ReservationID
		resp["payment_status"] = res.PaymentStatus
	}
	writeJSON(c, http.StatusOK, resp)
}
