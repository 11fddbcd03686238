package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"universal-loyalty-ledger/internal/domain"
	"universal-loyalty-ledger/internal/domain/model"
)

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	partners, byPartner, err := s.statsUC.Totals(ctx)
	if err != nil {
		http.Error(w, "Failed to get totals", http.StatusInternalServerError)
		return
	}
	pending, points, err := s.statsUC.ShadowOutstanding(ctx)
	if err != nil {
		http.Error(w, "Failed to get shadow totals", http.StatusInternalServerError)
		return
	}

	response := struct {
		TotalPartners      int            `json:"total_partners"`
		CustomersByPartner map[string]int `json:"customers_by_partner"`
		Shadow             struct {
			Pending           int   `json:"pending"`
			PointsOutstanding int64 `json:"points_outstanding"`
		} `json:"shadow_accounts"`
	}{
		TotalPartners:      partners,
		CustomersByPartner: byPartner,
	}
	response.Shadow.Pending = pending
	response.Shadow.PointsOutstanding = points

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

type adminPartner struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	DeepLinkTemplate string `json:"deep_link_template"`
	Active           bool   `json:"active"`
}

func toAdminPartner(p *model.Partner) adminPartner {
	return adminPartner{ID: p.ID, Name: p.Name, DeepLinkTemplate: p.DeepLinkTemplate, Active: p.Active}
}

func (s *Server) partnersListHandler(w http.ResponseWriter, r *http.Request) {
	partners, err := s.partnerUC.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to list partners", http.StatusInternalServerError)
		return
	}
	out := make([]adminPartner, 0, len(partners))
	for _, p := range partners {
		out = append(out, toAdminPartner(p))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) partnerRegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string `json:"name"`
		DeepLinkTemplate string `json:"deep_link_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p, credential, err := s.partnerUC.Register(r.Context(), req.Name, req.DeepLinkTemplate)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to register partner", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		adminPartner
		APICredential string `json:"api_credential"`
	}{toAdminPartner(p), credential})
}

func (s *Server) partnerGetHandler(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.partnerUC.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPartnerNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get partner", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toAdminPartner(p))
}

func (s *Server) partnerDeactivateHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.partnerUC.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrPartnerNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to deactivate partner", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) partnerDeepLinkHandler(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		DeepLinkTemplate string `json:"deep_link_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.partnerUC.UpdateDeepLinkTemplate(r.Context(), id, req.DeepLinkTemplate); err != nil {
		if errors.Is(err, domain.ErrPartnerNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update deep link", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) partnerShadowAccountsHandler(w http.ResponseWriter, r *http.Request, id string) {
	list, err := s.shadowUC.ListShadowAccounts(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to list shadow accounts", http.StatusInternalServerError)
		return
	}
	type shadowRow struct {
		ExternalCustomerID string `json:"external_customer_id"`
		Points             int64  `json:"points"`
		PendingActivation  bool   `json:"pending_activation"`
	}
	out := make([]shadowRow, 0, len(list))
	for _, sh := range list {
		out = append(out, shadowRow{sh.ExternalCustomerID, sh.Points, sh.PendingActivation})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
