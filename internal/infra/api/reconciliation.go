package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/infra/logging"
	"typing-premium-payments/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
)

// importStatement accepts a bank CSV either as a multipart "file" field or as
// the raw request body.
func (s *Server) importStatement(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	log := logging.With(r.Context(), s.log)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	src, closeFn, err := statementSource(r, s.cfg.MaxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "statement exceeds upload limit", Kind: kindValidation})
			return
		}
		badRequest(w, err)
		return
	}
	defer closeFn()

	res, err := s.recon.ImportStatement(r.Context(), src, caller.UserID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrImportInProgress):
			metrics.IncBatchFailed("locked")
		case errors.Is(err, domain.ErrValidation):
			metrics.IncBatchFailed("malformed")
		default:
			metrics.IncBatchFailed("error")
		}
		writeError(w, log, "import_statement", err)
		return
	}
	metrics.ObserveBatch(res.Imported, res.Duplicates, res.Skipped, res.Matched, res.Unmatched,
		len(res.NeedsReview), len(res.Errors), len(res.AutoVerified))
	log.Info().
		Str("batch_id", res.BatchID).
		Int("total", res.Total).
		Int("imported", res.Imported).
		Int("auto_verified", len(res.AutoVerified)).
		Msg("statement imported")
	writeJSON(w, http.StatusOK, res)
}

func statementSource(r *http.Request, maxBytes int64) (io.Reader, func(), error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		if r.Body == nil || r.Body == http.NoBody {
			return nil, nil, errEmptyBody
		}
		return r.Body, func() {}, nil
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, nil, err
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New(`multipart field "file" is required`)
	}
	return f, func() {
		_ = f.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}, nil
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, log, "list_transactions", err)
		return
	}
	status := model.ReconciliationStatus(strings.ToLower(r.URL.Query().Get("status")))
	if status == "" {
		status = model.ReconciliationManualReview
	}
	txns, err := s.recon.ListTransactions(r.Context(), status, offset, limit)
	if err != nil {
		writeError(w, log, "list_transactions", err)
		return
	}
	items := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		items = append(items, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, listResponse[transactionResponse]{Items: items})
}

func (s *Server) linkTransaction(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	txnID := strings.TrimSpace(chi.URLParam(r, "id"))

	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)
	log := logging.With(ctx, s.log)

	dec, err := s.recon.LinkTransaction(ctx, txnID, req.OrderID, caller.UserID)
	if err != nil {
		metrics.IncAdminDecision("link", "error")
		writeError(w, log, "link_transaction", err)
		return
	}
	metrics.IncAdminDecision("link", "ok")
	metrics.IncOrderTransition(string(dec.Order.Status))
	if dec.Premium != nil {
		metrics.IncPremiumActivation(string(dec.Premium.PlanType))
	}
	log.Info().Str("transaction_id", txnID).Msg("transaction linked")
	writeJSON(w, http.StatusOK, toDecisionResponse(dec, time.Now()))
}

func (s *Server) ignoreTransaction(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFrom(r.Context())
	txnID := strings.TrimSpace(chi.URLParam(r, "id"))
	log := logging.With(r.Context(), s.log)

	if err := s.recon.IgnoreTransaction(r.Context(), txnID, caller.UserID); err != nil {
		metrics.IncAdminDecision("ignore", "error")
		writeError(w, log, "ignore_transaction", err)
		return
	}
	metrics.IncAdminDecision("ignore", "ok")
	w.WriteHeader(http.StatusNoContent)
}
