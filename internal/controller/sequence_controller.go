package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/webinarflow/whatsapp-dispatch/internal/model"
	"github.com/webinarflow/whatsapp-dispatch/internal/repository"
	"github.com/webinarflow/whatsapp-dispatch/internal/service"
)

type SequenceController struct {
	Sequences repository.SequenceRepositoryInterface
	Scheduler *service.Scheduler
	Log       zerolog.Logger
}

func (c *SequenceController) CreateSequence(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID      int    `json:"tenant_id"`
		WebinarID     int    `json:"webinar_id"`
		Name          string `json:"name"`
		Phase         string `json:"phase"`
		OffsetMinutes int    `json:"offset_minutes"`
		Template      string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Phase != model.PhasePre && body.Phase != model.PhasePost {
		http.Error(w, "phase must be pre or post", http.StatusBadRequest)
		return
	}

	s := &model.Sequence{
		TenantID:      body.TenantID,
		WebinarID:     body.WebinarID,
		Name:          body.Name,
		Phase:         body.Phase,
		OffsetMinutes: body.OffsetMinutes,
		Template:      body.Template,
		Enabled:       true,
	}
	if err := c.Sequences.Create(s); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

func (c *SequenceController) ListSequences(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := strconv.Atoi(r.URL.Query().Get("tenant_id"))
	sequences, err := c.Sequences.ListByTenant(tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": sequences})
}

func (c *SequenceController) UpdateSequence(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid sequence id", http.StatusBadRequest)
		return
	}

	s, err := c.Sequences.GetByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var body struct {
		Name          *string `json:"name"`
		Phase         *string `json:"phase"`
		OffsetMinutes *int    `json:"offset_minutes"`
		Template      *string `json:"template"`
		Enabled       *bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name != nil {
		s.Name = *body.Name
	}
	if body.Phase != nil {
		s.Phase = *body.Phase
	}
	if body.OffsetMinutes != nil {
		s.OffsetMinutes = *body.OffsetMinutes
	}
	if body.Template != nil {
		s.Template = *body.Template
	}
	if body.Enabled != nil {
		s.Enabled = *body.Enabled
	}

	if err := c.Sequences.Update(s); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// MaterializeOccurrence forces materialization for one occurrence, used
// when an occurrence is registered after its sequences changed. The cron
// sweep in the worker covers the normal path.
func (c *SequenceController) MaterializeOccurrence(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid occurrence id", http.StatusBadRequest)
		return
	}

	occ, err := c.Sequences.GetOccurrenceByID(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if occ == nil {
		http.Error(w, "occurrence not found", http.StatusNotFound)
		return
	}

	created, err := c.Scheduler.MaterializeOccurrence(occ)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"occurrence_id": occ.ID,
		"starts_at":     occ.StartsAt.Format(time.RFC3339),
		"created":       created,
	})
}
