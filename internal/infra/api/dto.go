package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/usecase"
)

type createOrderRequest struct {
	PlanType string `json:"planType"`
}

type claimRequest struct {
	TxnRef   string  `json:"txnRef"`
	ProofRef *string `json:"proofRef,omitempty"`
}

type decisionRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

type linkRequest struct {
	OrderID string `json:"orderId"`
}

// orderResponse carries the create-order payload (orderId, planType, amount,
// baseAmount, paymentIdentifier, renderedCode, expiresAt, status) plus the
// lifecycle fields clients poll for.
type orderResponse struct {
	OrderID                  string     `json:"orderId"`
	UserID                   string     `json:"userId"`
	PlanType                 string     `json:"planType"`
	Amount                   string     `json:"amount"`
	BaseAmount               string     `json:"baseAmount"`
	Sequence                 int        `json:"sequence"`
	PaymentIdentifier        string     `json:"paymentIdentifier,omitempty"`
	RenderedCode             []byte     `json:"renderedCode,omitempty"`
	QRURL                    string     `json:"qrUrl,omitempty"`
	Status                   string     `json:"status"`
	IsExpired                bool       `json:"isExpired"`
	ClaimedTxnRef            *string    `json:"claimedTxnRef,omitempty"`
	BankReconciled           bool       `json:"bankReconciled"`
	ReconciliationConfidence *string    `json:"reconciliationConfidence,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	ExpiresAt                time.Time  `json:"expiresAt"`
	SubmittedAt              *time.Time `json:"submittedAt,omitempty"`
	VerifiedAt               *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy               *string    `json:"verifiedBy,omitempty"`
	Notes                    string     `json:"notes,omitempty"`
	HumanMessage             string     `json:"humanMessage,omitempty"`
}

// toOrderResponse exposes the payment identifier and code only while the
// order is pending.
func toOrderResponse(o *model.Order, isExpired bool) orderResponse {
	resp := orderResponse{
		OrderID:        o.ID,
		UserID:         o.UserID,
		PlanType:       string(o.PlanType),
		Amount:         o.UniqueAmount.StringFixed(2),
		BaseAmount:     o.BaseAmount.StringFixed(2),
		Sequence:       o.Sequence,
		Status:         string(o.Status),
		IsExpired:      isExpired,
		ClaimedTxnRef:  o.ClaimedTxnRef,
		BankReconciled: o.BankReconciled,
		CreatedAt:      o.CreatedAt,
		ExpiresAt:      o.ExpiresAt,
		SubmittedAt:    o.SubmittedAt,
		VerifiedAt:     o.VerifiedAt,
		VerifiedBy:     o.VerifiedBy,
		Notes:          o.Notes,
	}
	if o.Status == model.OrderStatusPending {
		resp.PaymentIdentifier = o.PaymentIdentifier
		if len(o.RenderedCode) > 0 {
			resp.RenderedCode = o.RenderedCode
			resp.QRURL = "/api/v1/orders/" + o.ID + "/qr"
		}
	}
	if o.ReconciliationConfidence != nil {
		c := string(*o.ReconciliationConfidence)
		resp.ReconciliationConfidence = &c
	}
	return resp
}

func toOrderView(v *usecase.OrderView) orderResponse {
	return toOrderResponse(&v.Order, v.IsExpired)
}

type premiumResponse struct {
	UserID    string       `json:"userId"`
	PlanType  string       `json:"planType"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Stacked   bool         `json:"stacked"`
	Quotas    model.Quotas `json:"quotas"`
}

type decisionResponse struct {
	OrderID     string           `json:"orderId"`
	Status      string           `json:"status"`
	PremiumData *premiumResponse `json:"premiumData,omitempty"`
	Order       orderResponse    `json:"order"`
}

func toDecisionResponse(d *usecase.Decision, now time.Time) decisionResponse {
	resp := decisionResponse{
		OrderID: d.Order.ID,
		Status:  string(d.Order.Status),
		Order:   toOrderResponse(d.Order, d.Order.IsExpired(now)),
	}
	if p := d.Premium; p != nil {
		resp.PremiumData = &premiumResponse{
			UserID:    p.UserID,
			PlanType:  string(p.PlanType),
			ExpiresAt: p.ExpiresAt,
			Stacked:   p.Stacked,
			Quotas:    p.Quotas,
		}
	}
	return resp
}

type transactionResponse struct {
	ID             string    `json:"id"`
	Amount         string    `json:"amount"`
	ExternalRef    string    `json:"externalRef"`
	Date           string    `json:"date,omitempty"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status"`
	MatchedOrderID *string   `json:"matchedOrderId,omitempty"`
	Confidence     int       `json:"confidence"`
	Method         string    `json:"method"`
	BatchID        string    `json:"batchId"`
	ImportedBy     string    `json:"importedBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toTransactionResponse(t *model.BankTransaction) transactionResponse {
	resp := transactionResponse{
		ID:             t.ID,
		Amount:         t.Amount.StringFixed(2),
		ExternalRef:    t.ExternalRef,
		Description:    t.Description,
		Status:         string(t.Status),
		MatchedOrderID: t.MatchedOrderID,
		Confidence:     t.Confidence,
		Method:         string(t.Method),
		BatchID:        t.BatchID,
		ImportedBy:     t.ImportedBy,
		CreatedAt:      t.CreatedAt,
	}
	if t.Date != nil {
		resp.Date = t.Date.Format("2006-01-02")
	}
	return resp
}

type notificationResponse struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	OrderID   *string    `json:"orderId,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		OrderID:   n.OrderID,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type planResponse struct {
	Type         string       `json:"type"`
	BaseAmount   string       `json:"baseAmount"`
	DurationDays int          `json:"durationDays"`
	Quotas       model.Quotas `json:"quotas"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

var errEmptyBody = errors.New("request body is required")

// decodeJSON rejects empty bodies and unknown fields.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: kindValidation})
}

// pageParams reads offset/limit query parameters; limits are clamped by the
// use cases.
func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, &domain.ValidationError{Field: "offset", Reason: "must be a non-negative integer"}
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, &domain.ValidationError{Field: "limit", Reason: "must be a non-negative integer"}
		}
	}
	return offset, limit, nil
}
