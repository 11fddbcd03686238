package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
	"universal-loyalty-ledger/internal/onboarding"

	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with no detail leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPartnerNotFound),
		errors.Is(err, domain.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPartnerInactive),
		errors.Is(err, domain.ErrAccountAlreadyActivated),
		errors.Is(err, domain.ErrClaimCodeAlreadyUsed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMissingPurpose),
		errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrClaimCodeInvalid):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type partnerResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	DeepLinkTemplate string    `json:"deep_link_template"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
}

func toPartnerResponse(p *model.Partner) partnerResponse {
	return partnerResponse{
		ID:               p.ID,
		Name:             p.Name,
		DeepLinkTemplate: p.DeepLinkTemplate,
		Active:           p.Active,
		CreatedAt:        p.CreatedAt,
	}
}

type customerResponse struct {
	UniversalID        string    `json:"universal_id"`
	ExternalCustomerID string    `json:"external_customer_id"`
	Name               string    `json:"name,omitempty"`
	Email              string    `json:"email,omitempty"`
	WalletRef          string    `json:"wallet_ref,omitempty"`
	PointsBalance      int64     `json:"points_balance"`
	OnboardingCode     string    `json:"onboarding_code,omitempty"`
	DeepLink           string    `json:"deep_link,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func toCustomerResponse(c *model.Customer) customerResponse {
	return customerResponse{
		UniversalID:        c.UniversalID,
		ExternalCustomerID: c.ExternalCustomerID,
		Name:               c.Name,
		Email:              c.Email,
		WalletRef:          c.WalletRef,
		PointsBalance:      c.PointsBalance,
		OnboardingCode:     c.OnboardingCode,
		DeepLink:           c.DeepLink,
		CreatedAt:          c.CreatedAt,
	}
}

type transactionResponse struct {
	TransferID string            `json:"transfer_id"`
	Points     int64             `json:"points"`
	Type       string            `json:"type"`
	Purpose    string            `json:"purpose,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

func toTransactionResponse(t *model.PointsTransaction) transactionResponse {
	return transactionResponse{
		TransferID: t.TransferID,
		Points:     t.Points,
		Type:       string(t.Type),
		Purpose:    t.Purpose,
		Metadata:   t.Metadata,
		Timestamp:  t.Timestamp,
	}
}

type shadowAccountResponse struct {
	ExternalCustomerID string     `json:"external_customer_id"`
	Points             int64      `json:"points"`
	ClaimCode          string     `json:"claim_code,omitempty"`
	PendingActivation  bool       `json:"pending_activation"`
	CreatedAt          time.Time  `json:"created_at"`
	ClaimedAt          *time.Time `json:"claimed_at,omitempty"`
}

func toShadowAccountResponse(s *model.ShadowAccount) shadowAccountResponse {
	return shadowAccountResponse{
		ExternalCustomerID: s.ExternalCustomerID,
		Points:             s.Points,
		ClaimCode:          s.ClaimCode,
		PendingActivation:  s.PendingActivation,
		CreatedAt:          s.CreatedAt,
		ClaimedAt:          s.ClaimedAt,
	}
}

type registerPartnerRequest struct {
	Name             string `json:"name"`
	DeepLinkTemplate string `json:"deep_link_template,omitempty"`
}

func (s *Server) handleRegisterPartner(w http.ResponseWriter, r *http.Request) {
	var req registerPartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, credential, err := s.partnerUC.Register(r.Context(), req.Name, req.DeepLinkTemplate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		partnerResponse
		// Returned exactly once; only a digest survives server side.
		APICredential string `json:"api_credential"`
	}{toPartnerResponse(p), credential})
}

type onboardRequest struct {
	ExternalCustomerID string `json:"external_customer_id"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExternalCustomerID == "" {
		writeError(w, http.StatusBadRequest, "external_customer_id is required")
		return
	}
	c, err := s.identityUC.Onboard(r.Context(), requestPartnerID(r), req.ExternalCustomerID, req.Name, req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerResponse(c))
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	c, err := s.identityUC.FindByExternalID(r.Context(), requestPartnerID(r), externalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

// handleOnboardingCode re-renders the customer's code in the requested
// format. Rendering is deterministic, so the cache never goes stale.
func (s *Server) handleOnboardingCode(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	format, err := onboarding.ParseCodeFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.identityUC.FindByExternalID(r.Context(), requestPartnerID(r), externalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rendered, ok := "", false
	if s.artifacts != nil {
		rendered, ok = s.artifacts.Get(r.Context(), c.UniversalID, string(format))
	}
	if !ok {
		rendered, err = s.generator.RenderCode(c.UniversalID, format)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if s.artifacts != nil {
			s.artifacts.Put(r.Context(), c.UniversalID, string(format), rendered)
		}
	}

	writeJSON(w, http.StatusOK, struct {
		UniversalID string `json:"universal_id"`
		Format      string `json:"format"`
		Code        string `json:"code"`
		DeepLink    string `json:"deep_link"`
	}{c.UniversalID, string(format), rendered, c.DeepLink})
}

type pointsRequest struct {
	ExternalCustomerID string            `json:"external_customer_id"`
	Points             int64             `json:"points"`
	Purpose            string            `json:"purpose,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type pointsResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Balance     int64               `json:"balance"`
}

func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	txn, balance, err := s.ledgerUC.Award(r.Context(), requestPartnerID(r), req.ExternalCustomerID, req.Points, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{toTransactionResponse(txn), balance})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	txn, balance, err := s.ledgerUC.Redeem(r.Context(), requestPartnerID(r), req.ExternalCustomerID, req.Points, req.Purpose, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{toTransactionResponse(txn), balance})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("external_customer_id")
	balance, err := s.ledgerUC.GetBalance(r.Context(), requestPartnerID(r), externalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ExternalCustomerID string `json:"external_customer_id"`
		Balance            int64  `json:"balance"`
	}{externalID, balance})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("external_customer_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.ledgerUC.History(r.Context(), requestPartnerID(r), externalID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTransactionResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShadowAward(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sh, err := s.shadowUC.ShadowAward(r.Context(), requestPartnerID(r), req.ExternalCustomerID, req.Points, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShadowAccountResponse(sh))
}

func (s *Server) handleShadowRedeem(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sh, err := s.shadowUC.ShadowRedeem(r.Context(), requestPartnerID(r), req.ExternalCustomerID, req.Points, req.Purpose, req.Metadata)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShadowAccountResponse(sh))
}

func (s *Server) handleListShadowAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.shadowUC.ListShadowAccounts(r.Context(), requestPartnerID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]shadowAccountResponse, 0, len(list))
	for _, sh := range list {
		out = append(out, toShadowAccountResponse(sh))
	}
	writeJSON(w, http.StatusOK, out)
}

type claimCodeRequest struct {
	ClaimCode string `json:"claim_code"`
	WalletRef string `json:"wallet_ref,omitempty"`
	Email     string `json:"email,omitempty"`
}

type validateClaimResponse struct {
	PartnerName        string    `json:"partner_name"`
	AccruedPoints      int64     `json:"accrued_points"`
	ExternalCustomerID string    `json:"external_customer_id"`
	PendingActivation  bool      `json:"pending_activation"`
	CreatedAt          time.Time `json:"created_at"`
}

func (s *Server) handleValidateClaimCode(w http.ResponseWriter, r *http.Request) {
	var req claimCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sh, err := s.shadowUC.ValidateClaimCode(r.Context(), req.ClaimCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := s.partnerUC.FindByID(r.Context(), sh.PartnerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// The caller only holds the code; tell them which partner the balance
	// sits with and how much is waiting. The code itself is never echoed.
	writeJSON(w, http.StatusOK, validateClaimResponse{
		PartnerName:        p.Name,
		AccruedPoints:      sh.Points,
		ExternalCustomerID: sh.ExternalCustomerID,
		PendingActivation:  sh.PendingActivation,
		CreatedAt:          sh.CreatedAt,
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req claimCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, migrated, err := s.shadowUC.Activate(r.Context(), req.ClaimCode, req.WalletRef, req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Customer       customerResponse `json:"customer"`
		MigratedPoints int64            `json:"migrated_points"`
	}{toCustomerResponse(c), migrated})
}
