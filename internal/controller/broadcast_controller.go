package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/queue"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
	"github.com/webinarflow/whatsapp-dispatch/internal/service"
)

type BroadcastController struct {
	Broadcasts  repository.BroadcastRepositoryInterface
	Leads       repository.LeadRepositoryInterface
	Coordinator *service.BroadcastCoordinator
	Queue       queue.Queue
	Log         zerolog.Logger
}

func (c *BroadcastController) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID        int        `json:"tenant_id"`
		Name            string     `json:"name"`
		Template        string     `json:"template"`
		FilterKind      string     `json:"filter_kind"`
		FilterFrom      *time.Time `json:"filter_from"`
		FilterTo        *time.Time `json:"filter_to"`
		FilterSessionID *int       `json:"filter_session_id"`
		FilterLeadIDs   []int64    `json:"filter_lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	switch body.FilterKind {
	case model.FilterAll, model.FilterDateRange, model.FilterSession, model.FilterList:
	default:
		http.Error(w, "invalid filter_kind", http.StatusBadRequest)
		return
	}

	b := &model.Broadcast{
		TenantID:        body.TenantID,
		Name:            body.Name,
		Template:        body.Template,
		FilterKind:      body.FilterKind,
		FilterFrom:      body.FilterFrom,
		FilterTo:        body.FilterTo,
		FilterSessionID: body.FilterSessionID,
		FilterLeadIDs:   body.FilterLeadIDs,
		Status:          model.BroadcastDraft,
	}
	if err := c.Broadcasts.Create(b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

func (c *BroadcastController) ListBroadcasts(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := strconv.Atoi(r.URL.Query().Get("tenant_id"))
	status := r.URL.Query().Get("status")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	broadcasts, total, err := c.Broadcasts.ListByTenant(tenantID, status, (page-1)*pageSize, pageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": broadcasts,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	})
}

func (c *BroadcastController) GetBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	b, err := c.Broadcasts.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b)
}

// LaunchBroadcast hands the broadcast to the worker over the queue; the
// worker resolves recipients and fixes the totals.
func (c *BroadcastController) LaunchBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	b, err := c.Broadcasts.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if b.Status != model.BroadcastDraft {
		http.Error(w, "broadcast cannot be launched in status: "+b.Status, http.StatusConflict)
		return
	}

	job := queue.LaunchJob{JobID: uuid.NewString(), BroadcastID: b.ID}
	payload, err := job.Marshal()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := c.Queue.Publish(queue.TopicBroadcastLaunches, payload); err != nil {
		http.Error(w, "failed to enqueue launch job", http.StatusInternalServerError)
		return
	}

	c.Log.Info().Int("broadcast_id", b.ID).Str("job_id", job.JobID).Msg("broadcast launch enqueued")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"broadcast_id": b.ID,
		"job_id":       job.JobID,
		"status":       "launching",
	})
}

// CancelBroadcast cancels all remaining queued messages. In-flight sends
// finish naturally.
func (c *BroadcastController) CancelBroadcast(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	n, err := c.Coordinator.CancelRemaining(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"broadcast_id": id,
		"cancelled":    n,
	})
}

// PersonalizedPreview renders the broadcast template against one lead.
func (c *BroadcastController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid broadcast id", http.StatusBadRequest)
		return
	}

	var body struct {
		LeadID           int     `json:"lead_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	b, err := c.Broadcasts.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	lead, err := c.Leads.GetByID(body.LeadID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if lead == nil {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}

	template := b.Template
	if body.OverrideTemplate != nil && *body.OverrideTemplate != "" {
		template = *body.OverrideTemplate
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rendered_message": service.RenderForLead(template, lead),
		"lead_id":          lead.ID,
	})
}
