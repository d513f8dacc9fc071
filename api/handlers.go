/*
handlers.go - HTTP handlers for the read-only income API

PURPOSE:
  Exposes what the engines produced so balance and income-history UIs
  can render it. Strictly read-only: every mutation happens through the
  batch commands, never through HTTP.

ENDPOINTS:
  GET /api/health                        Liveness probe
  GET /api/users/{id}/wallet             Earning wallet balance
  GET /api/users/{id}/payouts            Binary payout history
  GET /api/users/{id}/awards             Star-rank awards
  GET /api/users/{id}/qualifications     Salary qualifications + installments
  GET /api/users/{id}/ledger             Payout ledger (latest 100)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 404: Unknown user
  - 500: Store errors

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{Store: store}
}

// =============================================================================
// HANDLERS
// =============================================================================

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetWallet returns a user's earning wallet balance.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !h.userExists(w, r, userID) {
		return
	}

	wallet, err := h.Store.GetWallet(r.Context(), userID, commission.AccountEarning)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, WalletDTO{
		UserID:      wallet.UserID,
		AccountType: wallet.AccountType,
		Amount:      wallet.Amount.StringFixed(2),
	})
}

// ListPayouts returns a user's binary payout history, newest first.
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !h.userExists(w, r, userID) {
		return
	}

	payouts, err := h.Store.ListBinaryPayouts(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]PayoutDTO, 0, len(payouts))
	for _, p := range payouts {
		dtos = append(dtos, toPayoutDTO(p))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// ListAwards returns a user's star-rank awards ordered by rank.
func (h *Handler) ListAwards(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !h.userExists(w, r, userID) {
		return
	}

	awards, err := h.Store.ListStarAwards(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]AwardDTO, 0, len(awards))
	for _, a := range awards {
		dtos = append(dtos, toAwardDTO(a))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// ListQualifications returns a user's salary qualifications with their
// installment schedules.
func (h *Handler) ListQualifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !h.userExists(w, r, userID) {
		return
	}

	quals, err := h.Store.ListQualifications(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]QualificationDTO, 0, len(quals))
	for _, q := range quals {
		installments, err := h.Store.InstallmentsFor(r.Context(), q.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		dto := QualificationDTO{
			ID:           q.ID,
			SponsorID:    q.SponsorID,
			PeriodMarker: q.PeriodMarker,
			Mode:         string(q.Mode),
			VIPNo:        q.VIPNo,
			SalaryAmount: q.SalaryAmount.StringFixed(2),
			MonthsTotal:  q.MonthsTotal,
			MonthsPaid:   q.MonthsPaid,
			Status:       string(q.Status),
			Installments: make([]InstallmentDTO, 0, len(installments)),
		}
		for _, inst := range installments {
			dto.Installments = append(dto.Installments, toInstallmentDTO(inst))
		}
		dtos = append(dtos, dto)
	}
	respondJSON(w, http.StatusOK, dtos)
}

// ListLedger returns a user's latest payout-ledger rows.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if !h.userExists(w, r, userID) {
		return
	}

	entries, err := h.Store.LedgerEntriesFor(r.Context(), userID, 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toLedgerEntryDTO(e))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) userExists(w http.ResponseWriter, r *http.Request, userID string) bool {
	u, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return false
	}
	if u == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	log.Printf("[API] %v", err)
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
