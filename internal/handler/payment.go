package handler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vfsbus/bus-booking/internal/gateway"
	"github.com/vfsbus/bus-booking/internal/model"
	"github.com/vfsbus/bus-booking/internal/queue"
	"github.com/vfsbus/bus-booking/internal/repository"
	queue_publisher "github.com/vfsbus/bus-booking/internal/service"
)

// PaymentHandler drives the payment lifecycle: creating intents with
// the external processor, settling them (client confirm or webhook) and
// flipping bookings to CONFIRMED exactly once.  Both settlement paths
// funnel through PaymentRepo.Complete, whose compare-and-set makes the
// flow idempotent under races and duplicate deliveries.
type PaymentHandler struct {
	Payments      *repository.PaymentRepo
	Bookings      *repository.BookingRepo
	Gateway       *gateway.Client
	Currency      string
	WebhookSecret string
}

func NewPaymentHandler(p *repository.PaymentRepo, b *repository.BookingRepo, g *gateway.Client, currency, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{Payments: p, Bookings: b, Gateway: g, Currency: currency, WebhookSecret: webhookSecret}
}

type createIntentReq struct {
	BookingID uint64 `json:"booking_id"`
}

type paymentPart struct {
	ID          uint64  `json:"id"`
	BookingID   uint64  `json:"booking_id"`
	AmountCents uint32  `json:"amount_cents"`
	Currency    string  `json:"currency"`
	ProviderRef string  `json:"provider_ref"`
	Status      string  `json:"status"`
	PaidAt      *string `json:"paid_at,omitempty"`
}

func toPaymentPart(p model.Payment) paymentPart {
	out := paymentPart{
		ID: p.ID, BookingID: p.BookingID, AmountCents: p.AmountCents,
		Currency: p.Currency, ProviderRef: p.ProviderRef, Status: p.Status,
	}
	if p.PaidAt != nil {
		s := p.PaidAt.UTC().Format(time.RFC3339)
		out.PaidAt = &s
	}
	return out
}

// CreateIntent opens (or re-opens) a payment for a PENDING booking.
// Calling it again before settlement replaces the intent, so an
// abandoned checkout can be retried.  A booking whose payment already
// settled cannot get a new intent.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createIntentReq
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	b, err := h.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if b.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if b.Status != model.BookingStatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
	}
	if p, err := h.Payments.GetByBookingID(ctx, b.ID); err == nil && p.Status == model.PaymentStatusCompleted {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already paid"})
	}

	intent, err := h.Gateway.CreateIntent(ctx, b.TotalAmountCents, h.Currency,
		fmt.Sprintf("bus booking #%d", b.ID),
		map[string]string{"booking_id": fmt.Sprintf("%d", b.ID)})
	if err != nil {
		log.Printf("payment: create intent failed for booking %d: %v", b.ID, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment processor unavailable"})
	}

	p, err := h.Payments.Upsert(ctx, b.ID, b.TotalAmountCents, h.Currency, intent.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save payment failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"payment":       toPaymentPart(*p),
		"client_secret": intent.ClientSecret,
	})
}

// Confirm settles a payment from the client side.  The processor is
// asked for the intent's real status; only a succeeded intent settles
// the payment.  Confirming an already-settled payment returns the
// current state unchanged.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	p, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	b, err := h.Bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if b.UserID != uid && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if p.Status == model.PaymentStatusCompleted {
		return c.JSON(http.StatusOK, toPaymentPart(p))
	}

	intent, err := h.Gateway.RetrieveIntent(ctx, p.ProviderRef)
	if err != nil {
		log.Printf("payment: retrieve intent %s failed: %v", p.ProviderRef, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment processor unavailable"})
	}
	if intent.Status != gateway.IntentStatusSucceeded {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment has not succeeded at the processor"})
	}

	if err := h.settle(ctx, p.ID); err != nil {
		if err == repository.ErrInvalidState {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment cannot be completed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settle failed"})
	}

	out, err := h.Payments.GetByID(ctx, p.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toPaymentPart(out))
}

// Get returns one payment.  Customers may only read payments on their
// own bookings.
func (h *PaymentHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := pathID(c, "id")
	if id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.Payments.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !isAdmin(c) {
		b, err := h.Bookings.GetByID(ctx, p.BookingID)
		if err != nil || b.UserID != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, toPaymentPart(p))
}

// Webhook receives processor notifications.  The HMAC signature is
// verified over the raw body before any parsing; a bad signature is a
// 400 and the processor will retry.  Duplicate deliveries are harmless
// because settlement is a compare-and-set.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read body failed"})
	}
	sig := c.Request().Header.Get(gateway.SignatureHeader)
	if !gateway.VerifySignature(h.WebhookSecret, body, sig) {
		log.Printf("payment: webhook signature verification failed")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}
	ev, err := gateway.ParseEvent(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	switch ev.Type {
	case gateway.EventPaymentSucceeded:
		p, err := h.Payments.GetByProviderRef(ctx, ev.Data.ID)
		if err != nil {
			if err == repository.ErrNotFound {
				// Unknown intent: acknowledge so the processor stops retrying.
				log.Printf("payment: webhook for unknown intent %s", ev.Data.ID)
				return c.JSON(http.StatusOK, echo.Map{"received": true})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if err := h.settle(ctx, p.ID); err != nil && err != repository.ErrInvalidState {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settle failed"})
		}
	case gateway.EventPaymentFailed:
		p, err := h.Payments.GetByProviderRef(ctx, ev.Data.ID)
		if err == nil {
			if err := h.Payments.MarkFailed(ctx, p.ID); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
			}
		} else if err != repository.ErrNotFound {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	default:
		// Unhandled event types are acknowledged without action.
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// settle completes a payment via the compare-and-set and, when this
// call was the one that flipped it, publishes the confirmation event.
func (h *PaymentHandler) settle(ctx context.Context, paymentID uint64) error {
	flipped, err := h.Payments.Complete(ctx, paymentID)
	if err != nil {
		return err
	}
	if !flipped {
		return nil // already settled earlier; nothing more to do
	}

	p, err := h.Payments.GetByID(ctx, paymentID)
	if err != nil {
		log.Printf("payment: load settled payment %d failed: %v", paymentID, err)
		return nil
	}
	detail, err := h.Bookings.GetDetail(ctx, p.BookingID)
	if err != nil {
		log.Printf("payment: load booking %d for event failed: %v", p.BookingID, err)
		return nil
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:        detail.ID,
		UserID:           detail.UserID,
		ScheduleID:       detail.ScheduleID,
		RouteName:        detail.RouteName,
		Origin:           detail.Origin,
		Destination:      detail.Destination,
		BusNumber:        detail.BusNumber,
		DepartsAt:        detail.DepartsAt,
		ArrivesAt:        detail.ArrivesAt,
		SeatNumbers:      detail.SeatNumbers,
		TotalAmountCents: detail.TotalAmountCents,
		ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	// Publish out of band; a broker outage must not fail the settlement.
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishBookingConfirmed(pubCtx, ev)
	}()
	return nil
}
