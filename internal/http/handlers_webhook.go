package http

import (
	"math"
	"net/http"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// paymentWebhook mirrors the payment provider payload. Only the fields the
// worker needs are decoded.
type paymentWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Buyer struct {
			Email string `json:"email"`
		} `json:"buyer"`
		Purchase struct {
			Transaction string `json:"transaction"`
			Price       struct {
				Value float64 `json:"value"`
			} `json:"price"`
		} `json:"purchase"`
		Subscription struct {
			SubscriberCode string `json:"subscriber_code"`
			Plan           struct {
				Name string `json:"name"`
			} `json:"plan"`
		} `json:"subscription"`
	} `json:"data"`
}

// planFromName maps the provider plan name onto an internal plan. Unknown
// names fall back to monthly, matching how paid purchases are granted.
func planFromName(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); {
	case strings.Contains(n, "annual") || strings.Contains(n, "anual"):
		return core.PlanAnnual
	case strings.Contains(n, "semi") || strings.Contains(n, "semestral"):
		return core.PlanSemiannual
	default:
		return core.PlanMonthly
	}
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}

	var payload paymentWebhook
	if err := decodeJSONLoose(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Event == "" || payload.Data.Buyer.Email == "" {
		writeError(w, http.StatusBadRequest, "missing event or buyer email")
		return
	}

	msg := amqp.NewSubscriptionEventMessage(
		payload.Event,
		strings.ToLower(strings.TrimSpace(payload.Data.Buyer.Email)),
		planFromName(payload.Data.Subscription.Plan.Name),
		int64(math.Round(payload.Data.Purchase.Price.Value*100)),
		payload.Data.Purchase.Transaction,
		payload.Data.Subscription.SubscriberCode,
	)

	if err := s.publisher.PublishSubscriptionEvent(r.Context(), msg); err != nil {
		s.logger.ErrorContext(r.Context(), "Subscription event publish failed",
			log.FieldEvent, payload.Event,
			log.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "event queue unavailable")
		return
	}

	s.logger.InfoContext(r.Context(), "Subscription event queued",
		log.FieldEvent, payload.Event,
		log.FieldEmail, msg.Email)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
