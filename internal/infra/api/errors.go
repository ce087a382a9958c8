package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"typing-premium-payments/internal/domain"

	"github.com/rs/zerolog"
)

// Error kinds tell the client whether to re-prompt, redirect or back off.
const (
	kindValidation = "validation"
	kindConflict   = "conflict"
	kindCapacity   = "capacity"
	kindNotFound   = "not_found"
	kindForbidden  = "forbidden"
	kindInternal   = "internal"
)

type errorBody struct {
	Error     string     `json:"error"`
	Kind      string     `json:"kind"`
	Field     string     `json:"field,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	OrderID   string     `json:"orderId,omitempty"`
	Status    string     `json:"status,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	PlanType  string     `json:"planType,omitempty"`
	Format    string     `json:"format,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a use-case error onto a status code and a body carrying
// enough context for the client to recover.
func writeError(w http.ResponseWriter, log *zerolog.Logger, op string, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("op", op).Int("status", status).Msg("request rejected")
	}
	if status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	body := errorBody{Error: err.Error()}

	var (
		exhausted *domain.SequenceExhaustedError
		dupOrder  *domain.DuplicatePendingOrderError
		decided   *domain.AlreadyDecidedError
		notSubmit *domain.OrderNotSubmittableError
		badTxnID  *domain.InvalidTransactionIDError
		invalid   *domain.ValidationError
		malformed *domain.MalformedStatementError
		dupClaim  *domain.DuplicateClaimError
	)
	switch {
	case errors.As(err, &exhausted):
		body.PlanType = exhausted.PlanType
	case errors.As(err, &dupOrder):
		body.OrderID, body.Status = dupOrder.OrderID, dupOrder.Status
		exp := dupOrder.ExpiresAt
		body.ExpiresAt = &exp
	case errors.As(err, &decided):
		body.OrderID, body.Status = decided.OrderID, decided.Status
	case errors.As(err, &notSubmit):
		body.OrderID, body.Status, body.Reason = notSubmit.OrderID, notSubmit.Status, notSubmit.Reason
	case errors.As(err, &badTxnID):
		body.Field, body.Format = "txnRef", badTxnID.Format
	case errors.As(err, &invalid):
		body.Field, body.Reason = invalid.Field, invalid.Reason
	case errors.As(err, &malformed):
		body.Reason = malformed.Reason
	case errors.As(err, &dupClaim):
		body.Field = "txnRef"
	}

	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		body.Kind = kindValidation
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrCapacity):
		body.Kind = kindCapacity
		return http.StatusServiceUnavailable, body
	case errors.Is(err, domain.ErrRateLimited):
		body.Kind = kindCapacity
		return http.StatusTooManyRequests, body
	case errors.Is(err, domain.ErrImportInProgress):
		body.Kind = kindCapacity
		return http.StatusServiceUnavailable, body
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrTransactionSettled):
		body.Kind = kindConflict
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrNotFound):
		body.Kind = kindNotFound
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrForbidden):
		body.Kind = kindForbidden
		return http.StatusForbidden, body
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error", Kind: kindInternal}
}
