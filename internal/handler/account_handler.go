// internal/handler/account_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
	"github.com/webinarflow/whatsapp-dispatch/internal/service"
)

// AccountHandler holds the dependencies for account-related HTTP handlers
type AccountHandler struct {
	Repo    repository.AccountRepositoryInterface
	Service *service.AccountService
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TenantID    int    `json:"tenant_id"`
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
		Scope       string `json:"scope"`
		Adapter     string `json:"adapter"`
		GatewayURL  string `json:"gateway_url"`
		APIToken    string `json:"api_token"`
		Priority    int    `json:"priority"`
		HourlyLimit int    `json:"hourly_limit"`
		DailyLimit  int    `json:"daily_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	account := &model.Account{
		TenantID:    payload.TenantID,
		Name:        payload.Name,
		PhoneNumber: payload.PhoneNumber,
		Status:      model.AccountDisconnected,
		Scope:       payload.Scope,
		Adapter:     payload.Adapter,
		GatewayURL:  payload.GatewayURL,
		APIToken:    payload.APIToken,
		Priority:    payload.Priority,
		HourlyLimit: payload.HourlyLimit,
		DailyLimit:  payload.DailyLimit,
	}
	if err := h.Service.Register(account); err != nil {
		http.Error(w, "failed to create account: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := strconv.Atoi(r.URL.Query().Get("tenant_id"))
	status := r.URL.Query().Get("status")

	accounts, err := h.Repo.ListByTenant(tenantID, status)
	if err != nil {
		http.Error(w, "failed to fetch accounts: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": accounts})
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	account, err := h.Repo.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	account, err := h.Repo.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var payload struct {
		Name        *string `json:"name"`
		Scope       *string `json:"scope"`
		GatewayURL  *string `json:"gateway_url"`
		APIToken    *string `json:"api_token"`
		Priority    *int    `json:"priority"`
		HourlyLimit *int    `json:"hourly_limit"`
		DailyLimit  *int    `json:"daily_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Name != nil {
		account.Name = *payload.Name
	}
	if payload.Scope != nil {
		account.Scope = *payload.Scope
	}
	if payload.GatewayURL != nil {
		account.GatewayURL = *payload.GatewayURL
	}
	if payload.APIToken != nil {
		account.APIToken = *payload.APIToken
	}
	if payload.Priority != nil {
		account.Priority = *payload.Priority
	}
	if payload.HourlyLimit != nil {
		account.HourlyLimit = *payload.HourlyLimit
	}
	if payload.DailyLimit != nil {
		account.DailyLimit = *payload.DailyLimit
	}

	if err := h.Repo.Update(account); err != nil {
		http.Error(w, "failed to update account: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	if err := h.Repo.Delete(id); err != nil {
		http.Error(w, "failed to delete account: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConnectAccount asks the channel adapter to establish the session.
func (h *AccountHandler) ConnectAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	status, err := h.Service.Connect(id)
	if err != nil {
		http.Error(w, "connect failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// ConnectionEvent is the webhook the connectivity layer calls on status
// changes (pairing completed, session dropped, account banned, ...).
func (h *AccountHandler) ConnectionEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.ApplyConnectionEvent(id, payload.Status); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
