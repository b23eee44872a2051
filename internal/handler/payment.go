package handler

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/queue"
	"github.com/kuadra/cocheras-api/internal/repository"
	queuepublisher "github.com/kuadra/cocheras-api/internal/service"
)

// checkoutBaseURL is where the payment provider hosts the hosted
// checkout page for an initiated payment intent.
const checkoutBaseURL = "https://checkout.kuadra.app/pay/"

var paymentMethods = map[string]bool{
	"tarjeta":       true,
	"transferencia": true,
	"efectivo":      true,
}

// PaymentHandler implements the two-step payment workflow (initiate,
// then confirm) plus the legacy one-shot payment endpoint the mobile
// clients still use. Confirmation moves the reservation to confirmada
// and writes both notifications in the same transaction as the
// payment update, so either everything lands or nothing does.
type PaymentHandler struct {
	Payments      *repository.PaymentRepo
	Reservations  *repository.ReservationRepo
	Spaces        *repository.SpaceRepo
	Notifications *repository.NotificationRepo
	Now           func() time.Time
	// Publish is swapped out in tests; nil disables publishing.
	Publish func(ctx context.Context, ev queue.PaymentConfirmedEvent) error
}

func NewPaymentHandler(p *repository.PaymentRepo, r *repository.ReservationRepo, s *repository.SpaceRepo, n *repository.NotificationRepo) *PaymentHandler {
	return &PaymentHandler{
		Payments:      p,
		Reservations:  r,
		Spaces:        s,
		Notifications: n,
		Now:           time.Now,
		Publish:       queuepublisher.PublishPaymentConfirmed,
	}
}

func newPaymentReference() string {
	return "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newClientSecret() string {
	return "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type initiatePaymentReq struct {
	ReservaID uint64 `json:"id_reserva"`
	Method    string `json:"metodo_pago"`
}

type initiatePaymentResp struct {
	PaymentID    uint64 `json:"id_pago"`
	ReservaID    uint64 `json:"id_reserva"`
	AmountCents  int64  `json:"monto_cents"`
	Reference    string `json:"referencia_pago"`
	ClientSecret string `json:"client_secret"`
	CheckoutURL  string `json:"checkout_url"`
	Status       string `json:"estado"`
}

// Initiate creates a pending payment intent for a reservation. The
// amount is derived from the reservation window and the space's hourly
// price; the client secret is returned once and never stored.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req initiatePaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ReservaID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_reserva required"})
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !paymentMethods[method] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid metodo_pago"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.GetByID(ctx, req.ReservaID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	if !res.Status.Payable() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation cannot be paid"})
	}
	space, err := h.Spaces.GetByID(ctx, res.SpaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	tx, err := h.Payments.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	pay := model.Payment{
		ReservaID:   res.ID,
		UserID:      userID,
		AmountCents: model.AmountCentsFor(res.StartsAt, res.EndsAt, space.PriceCentsPerHour),
		Method:      method,
		Reference:   newPaymentReference(),
		Status:      model.PaymentPending,
	}
	if err := h.Payments.CreateTx(ctx, tx, &pay); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, initiatePaymentResp{
		PaymentID:    pay.ID,
		ReservaID:    pay.ReservaID,
		AmountCents:  pay.AmountCents,
		Reference:    pay.Reference,
		ClientSecret: newClientSecret(),
		CheckoutURL:  checkoutBaseURL + pay.Reference,
		Status:       string(pay.Status),
	})
}

type confirmPaymentReq struct {
	Reference string `json:"referencia_pago"`
}

// Confirm completes a pending payment. In one transaction it marks
// the payment completado, moves the reservation to confirmada, and
// writes one notification for the payer and one for the space owner.
// The payment.confirmed event is published after commit, best effort.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req confirmPaymentReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Reference) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "referencia_pago required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Payments.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	pay, err := h.Payments.GetByReferenceTx(ctx, tx, strings.TrimSpace(req.Reference))
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if pay.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your payment"})
	}
	if pay.Status != model.PaymentPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment already processed"})
	}

	res, err := h.Reservations.GetByIDTx(ctx, tx, pay.ReservaID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.Status == model.ReservationCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation was cancelled"})
	}
	space, err := h.Spaces.GetByID(ctx, res.SpaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	now := h.Now().UTC()
	if err := h.Payments.MarkCompletedTx(ctx, tx, pay.ID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update payment failed"})
	}
	if res.Status == model.ReservationPending {
		if err := h.Reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationConfirmed); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update reservation failed"})
		}
	}
	if err := h.notifyConfirmedTx(ctx, tx, pay, res, space); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "write notifications failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	h.publishConfirmed(pay, res, space, now)

	return c.JSON(http.StatusOK, echo.Map{
		"id_pago":    pay.ID,
		"id_reserva": res.ID,
		"estado":     string(model.PaymentCompleted),
		"fecha_pago": now,
	})
}

type directPaymentReq struct {
	ReservaID uint64 `json:"id_reserva"`
	Method    string `json:"metodo_pago"`
}

// CreateDirect is the legacy one-shot endpoint: it records a payment
// and confirms it in a single call, with the same side effects as
// Initiate followed by Confirm.
func (h *PaymentHandler) CreateDirect(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req directPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ReservaID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_reserva required"})
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !paymentMethods[method] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid metodo_pago"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Payments.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.Reservations.GetByIDTx(ctx, tx, req.ReservaID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	if !res.Status.Payable() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation cannot be paid"})
	}
	space, err := h.Spaces.GetByID(ctx, res.SpaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	now := h.Now().UTC()
	pay := model.Payment{
		ReservaID:   res.ID,
		UserID:      userID,
		AmountCents: model.AmountCentsFor(res.StartsAt, res.EndsAt, space.PriceCentsPerHour),
		Method:      method,
		Reference:   newPaymentReference(),
		Status:      model.PaymentPending,
	}
	if err := h.Payments.CreateTx(ctx, tx, &pay); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create payment failed"})
	}
	if err := h.Payments.MarkCompletedTx(ctx, tx, pay.ID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update payment failed"})
	}
	if res.Status == model.ReservationPending {
		if err := h.Reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationConfirmed); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update reservation failed"})
		}
	}
	if err := h.notifyConfirmedTx(ctx, tx, pay, res, space); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "write notifications failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	h.publishConfirmed(pay, res, space, now)

	return c.JSON(http.StatusCreated, echo.Map{
		"id_pago":         pay.ID,
		"id_reserva":      res.ID,
		"monto_cents":     pay.AmountCents,
		"referencia_pago": pay.Reference,
		"estado":          string(model.PaymentCompleted),
		"fecha_pago":      now,
	})
}

// ListMine returns the caller's payments, newest first.
func (h *PaymentHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	payments, err := h.Payments.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	type paymentResp struct {
		ID          uint64     `json:"id_pago"`
		ReservaID   uint64     `json:"id_reserva"`
		AmountCents int64      `json:"monto_cents"`
		Method      string     `json:"metodo_pago"`
		Reference   string     `json:"referencia_pago"`
		Status      string     `json:"estado"`
		PaidAt      *time.Time `json:"fecha_pago,omitempty"`
		CreatedAt   time.Time  `json:"fecha_creacion"`
	}
	out := make([]paymentResp, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResp{
			ID: p.ID, ReservaID: p.ReservaID, AmountCents: p.AmountCents,
			Method: p.Method, Reference: p.Reference, Status: string(p.Status),
			PaidAt: p.PaidAt, CreatedAt: p.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// notifyConfirmedTx writes the payer and owner notifications inside
// the confirmation transaction.
func (h *PaymentHandler) notifyConfirmedTx(ctx context.Context, tx *sql.Tx, pay model.Payment, res model.Reservation, space model.Space) error {
	payer := model.Notification{
		UserID:  pay.UserID,
		Title:   "Pago confirmado",
		Message: "Tu pago de la reserva en " + space.Address + " fue confirmado.",
		Kind:    "pago",
	}
	if err := h.Notifications.CreateTx(ctx, tx, &payer); err != nil {
		return err
	}
	if space.OwnerID != 0 && space.OwnerID != pay.UserID {
		owner := model.Notification{
			UserID:  space.OwnerID,
			Title:   "Nueva reserva confirmada",
			Message: "Tu cochera en " + space.Address + " tiene una reserva confirmada.",
			Kind:    "reserva",
		}
		if err := h.Notifications.CreateTx(ctx, tx, &owner); err != nil {
			return err
		}
	}
	return nil
}

func (h *PaymentHandler) publishConfirmed(pay model.Payment, res model.Reservation, space model.Space, at time.Time) {
	if h.Publish == nil {
		return
	}
	ev := queue.PaymentConfirmedEvent{
		PaymentID:     pay.ID,
		ReservationID: res.ID,
		UserID:        pay.UserID,
		SpaceID:       space.ID,
		SpaceAddress:  space.Address,
		OwnerID:       space.OwnerID,
		StartsAt:      res.StartsAt.Format(time.RFC3339),
		EndsAt:        res.EndsAt.Format(time.RFC3339),
		AmountCents:   pay.AmountCents,
		Method:        pay.Method,
		Reference:     pay.Reference,
		ConfirmedAt:   at.Format(time.RFC3339),
	}
	// Publishing is async and best effort; confirmation already committed.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Publish(ctx, ev); err != nil {
			log.Printf("payment: publish confirmed event failed: %v", err)
		}
	}()
}
