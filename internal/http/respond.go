package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"avtoledger/internal/core"
	"avtoledger/internal/history"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return false
	}
	return true
}

// queryUserID reads the mandatory user_id query parameter.
func queryUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "user_id must be a positive integer")
		return 0, false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "bad_request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

type invoiceJSON struct {
	ID         int64  `json:"id"`
	Descriptor string `json:"descriptor"`
	Amount     string `json:"amount"`
	CreatedAt  string `json:"created_at"`
}

type paymentJSON struct {
	ID                 int64  `json:"id"`
	Amount             string `json:"amount"`
	DatePaid           string `json:"date_paid"`
	InvoiceID          *int64 `json:"invoice_id,omitempty"`
	DescriptorSnapshot string `json:"descriptor_snapshot,omitempty"`
	CreatedAt          string `json:"created_at"`
}

type entryJSON struct {
	Kind       string `json:"kind"`
	ID         int64  `json:"id"`
	Amount     string `json:"amount"`
	Descriptor string `json:"descriptor,omitempty"`
	DatePaid   string `json:"date_paid,omitempty"`
	CreatedAt  string `json:"created_at"`
	Display    string `json:"display"`
}

func toInvoiceJSON(inv core.Invoice) invoiceJSON {
	return invoiceJSON{
		ID:         inv.ID,
		Descriptor: inv.Descriptor,
		Amount:     inv.Amount.StringFixed(2),
		CreatedAt:  inv.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentJSON(p core.Payment) paymentJSON {
	return paymentJSON{
		ID:                 p.ID,
		Amount:             p.Amount.StringFixed(2),
		DatePaid:           core.FormatDate(p.DatePaid),
		InvoiceID:          p.InvoiceID,
		DescriptorSnapshot: p.DescriptorSnapshot,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryJSON(e core.HistoryEntry) entryJSON {
	out := entryJSON{
		Kind:       string(e.Kind),
		ID:         e.ID,
		Amount:     e.Amount.StringFixed(2),
		Descriptor: e.Descriptor,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		Display:    history.EntrySummary(e),
	}
	if e.Kind == core.KindPayment {
		out.DatePaid = core.FormatDate(e.DatePaid)
	}
	return out
}

func toEntriesJSON(entries []core.HistoryEntry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = toEntryJSON(e)
	}
	return out
}
