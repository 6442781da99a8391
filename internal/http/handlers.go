package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"avtoledger/internal/core"
	"avtoledger/internal/history"
	"avtoledger/internal/ledger"
)

type createInvoiceRequest struct {
	UserID     int64  `json:"user_id"`
	Text       string `json:"text,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
	Amount     string `json:"amount,omitempty"`
}

// handleCreateInvoice records an invoice either from pasted free-form text
// or from an explicit descriptor and amount.
func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "user_id must be a positive integer")
		return
	}

	var (
		inv core.Invoice
		err error
	)
	if req.Text != "" {
		inv, err = s.svc.AddInvoiceFromText(r.Context(), req.UserID, req.Text)
	} else {
		amount, verr := core.ValidateAmount(req.Amount)
		if verr != nil {
			writeServiceError(w, verr)
			return
		}
		inv, err = s.svc.AddInvoice(r.Context(), req.UserID, req.Descriptor, amount, "")
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := s.svc.Balance(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, struct {
		Invoice invoiceJSON `json:"invoice"`
		Balance string      `json:"balance"`
	}{toInvoiceJSON(inv), snap.Current.StringFixed(2)})
}

type createPaymentRequest struct {
	UserID    int64  `json:"user_id"`
	Amount    string `json:"amount"`
	DatePaid  string `json:"date_paid,omitempty"`
	InvoiceID *int64 `json:"invoice_id,omitempty"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "user_id must be a positive integer")
		return
	}

	amount, err := core.ValidateAmount(req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	datePaid := time.Now()
	if req.DatePaid != "" {
		datePaid, err = core.ParseUserDate(req.DatePaid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}

	p, err := s.svc.AddPayment(r.Context(), req.UserID, amount, datePaid, req.InvoiceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := s.svc.Balance(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, struct {
		Payment paymentJSON `json:"payment"`
		Balance string      `json:"balance"`
	}{toPaymentJSON(p), snap.Current.StringFixed(2)})
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeleteInvoice(r.Context(), userID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.svc.DeletePayment(r.Context(), userID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	snap, err := s.svc.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		UserID    int64  `json:"user_id"`
		Balance   string `json:"balance"`
		Formatted string `json:"formatted"`
	}{userID, snap.Current.StringFixed(2), core.FormatBalance(snap.Current)})
}

func (s *Server) handleRecentInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	options, err := s.svc.RecentInvoices(r.Context(), userID, s.recentLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type optionJSON struct {
		Invoice invoiceJSON `json:"invoice"`
		Label   string      `json:"label"`
	}
	out := make([]optionJSON, len(options))
	for i, opt := range options {
		out[i] = optionJSON{toInvoiceJSON(opt.Invoice), opt.Label}
	}
	respondJSON(w, http.StatusOK, struct {
		Invoices []optionJSON `json:"invoices"`
	}{out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", s.perPage)
	if page < 1 || perPage < 1 {
		respondError(w, http.StatusBadRequest, "bad_request", "page and per_page must be positive integers")
		return
	}

	entries, total, totalPages, err := s.svc.PaginatedHistory(r.Context(), userID, page, perPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Entries    []entryJSON `json:"entries"`
		Page       int         `json:"page"`
		PerPage    int         `json:"per_page"`
		Total      int         `json:"total"`
		TotalPages int         `json:"total_pages"`
	}{toEntriesJSON(entries), page, perPage, total, totalPages})
}

// handleExport streams the plain-text history report as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	report, filename, err := s.svc.ExportReport(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.SanitizeFilename(filename)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(report)); err != nil {
		slog.ErrorContext(r.Context(), "failed to write export", "user_id", userID, "error", err)
	}
}

func (s *Server) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	last, err := s.svc.DeleteLastEntry(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	snap, err := s.svc.Balance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		Deleted entryJSON `json:"deleted"`
		Summary string    `json:"summary"`
		Balance string    `json:"balance"`
	}{toEntryJSON(last), history.EntryListItem(last), snap.Current.StringFixed(2)})
}

type reconcileRequest struct {
	UserID int64 `json:"user_id"`
	Repair bool  `json:"repair"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "user_id must be a positive integer")
		return
	}

	report, err := s.svc.Reconcile(r.Context(), req.UserID, req.Repair)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		UserID     int64  `json:"user_id"`
		Cached     string `json:"cached"`
		Recomputed string `json:"recomputed"`
		Diverged   bool   `json:"diverged"`
		Repaired   bool   `json:"repaired"`
	}{report.UserID, report.Cached.StringFixed(2), report.Recomputed.StringFixed(2), report.Diverged, report.Repaired})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n := 0
	for _, c := range raw {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
		if n > 1<<30 {
			return -1
		}
	}
	return n
}

// writeServiceError maps sentinel errors onto HTTP status codes. Anything
// unrecognized is a 500 with the detail kept out of the response.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNoAmount):
		respondError(w, http.StatusUnprocessableEntity, "no_amount", "no amount found in text")
	case errors.Is(err, core.ErrInvalidAmount):
		respondError(w, http.StatusUnprocessableEntity, "invalid_amount", "amount is not a valid number")
	case errors.Is(err, core.ErrAmountNotPositive):
		respondError(w, http.StatusUnprocessableEntity, "invalid_amount", "amount must be greater than zero")
	case errors.Is(err, core.ErrAmountTooLarge):
		respondError(w, http.StatusUnprocessableEntity, "invalid_amount", "amount exceeds the allowed maximum")
	case errors.Is(err, core.ErrInvalidDate):
		respondError(w, http.StatusUnprocessableEntity, "invalid_date", "date must be in DD.MM.YYYY format")
	case errors.Is(err, core.ErrEmptyDescriptor):
		respondError(w, http.StatusUnprocessableEntity, "invalid_descriptor", "descriptor cannot be empty")
	case errors.Is(err, ledger.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "entry not found")
	default:
		slog.Error("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
