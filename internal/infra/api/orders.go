package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/infra/logging"
	"typing-premium-payments/internal/infra/metrics"
	"typing-premium-payments/internal/usecase"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listPlans(w http.ResponseWriter, _ *http.Request) {
	items := make([]planResponse, 0)
	for _, t := range s.catalog.Types() {
		p, err := s.catalog.Get(t)
		if err != nil {
			continue
		}
		items = append(items, planResponse{
			Type:         string(p.Type),
			BaseAmount:   p.BaseAmount.StringFixed(2),
			DurationDays: p.DurationDays,
			Quotas:       p.Quotas,
		})
	}
	writeJSON(w, http.StatusOK, listResponse[planResponse]{Items: items})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	log := logging.With(r.Context(), s.log)

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	plan, err := model.ParsePlanType(req.PlanType)
	if err != nil {
		writeError(w, log, "create_order", err)
		return
	}

	o, err := s.orders.CreateOrder(r.Context(), caller.UserID, plan)
	if err != nil {
		if errors.Is(err, domain.ErrCapacity) {
			metrics.IncSequenceExhausted(string(plan))
		}
		writeError(w, log, "create_order", err)
		return
	}
	metrics.IncOrderCreated(string(plan))
	writeJSON(w, http.StatusCreated, toOrderResponse(o, false))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ctx := logging.WithOrderID(r.Context(), id)

	v, err := s.orders.GetOrder(ctx, id, caller)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), "get_order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(v))
}

// orderQR serves the rendered payment code while the order still solicits
// payment; afterwards it is gone like the identifier.
func (s *Server) orderQR(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ctx := logging.WithOrderID(r.Context(), id)

	v, err := s.orders.GetOrder(ctx, id, caller)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), "order_qr", err)
		return
	}
	if v.IsExpired || len(v.RenderedCode) == 0 {
		writeJSON(w, http.StatusGone, errorBody{Error: "payment code is no longer available", Kind: kindConflict, OrderID: v.ID, Status: string(v.Status)})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v.RenderedCode)
}

func (s *Server) activeOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	v, err := s.orders.ActiveOrderForUser(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), "active_order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(v))
}

func (s *Server) submitClaim(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ctx := logging.WithOrderID(r.Context(), id)
	log := logging.With(ctx, s.log)

	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	o, err := s.orders.SubmitClaim(ctx, id, caller.UserID, req.TxnRef, req.ProofRef)
	if err != nil {
		metrics.IncOrderClaim(claimOutcome(err))
		writeError(w, log, "submit_claim", err)
		return
	}
	metrics.IncOrderClaim("accepted")
	metrics.IncOrderTransition(string(o.Status))

	resp := toOrderResponse(o, false)
	resp.HumanMessage = usecase.ClaimReceivedMessage
	writeJSON(w, http.StatusOK, resp)
}

func claimOutcome(err error) string {
	var (
		dup *domain.DuplicateClaimError
		ns  *domain.OrderNotSubmittableError
	)
	switch {
	case errors.As(err, &dup):
		return "duplicate_ref"
	case errors.As(err, &ns):
		return ns.Reason
	case errors.Is(err, domain.ErrValidation):
		return "invalid_ref"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// ===== admin =====

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, log, "list_orders", err)
		return
	}
	status := model.OrderStatus(strings.ToLower(r.URL.Query().Get("status")))
	if status == "" {
		status = model.OrderStatusSubmitted
	}
	orders, err := s.orders.ListOrders(r.Context(), status, offset, limit)
	if err != nil {
		writeError(w, log, "list_orders", err)
		return
	}
	now := time.Now()
	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrderResponse(o, o.IsExpired(now)))
	}
	writeJSON(w, http.StatusOK, listResponse[orderResponse]{Items: items})
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	ctx := logging.WithOrderID(r.Context(), id)
	log := logging.With(ctx, s.log)

	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	action, err := usecase.ParseDecisionAction(req.Action)
	if err != nil {
		writeError(w, log, "decide", err)
		return
	}

	dec, err := s.orders.Decide(ctx, id, caller.UserID, action, req.Notes)
	if err != nil {
		metrics.IncAdminDecision(string(action), "error")
		writeError(w, log, "decide", err)
		return
	}
	metrics.IncAdminDecision(string(action), "ok")
	metrics.IncOrderTransition(string(dec.Order.Status))
	if dec.Premium != nil {
		metrics.IncPremiumActivation(string(dec.Premium.PlanType))
	}
	log.Info().Str("action", string(action)).Str("status", string(dec.Order.Status)).Msg("order decided")
	writeJSON(w, http.StatusOK, toDecisionResponse(dec, time.Now()))
}
