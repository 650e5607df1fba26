package schedulehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"payrolld/internal/domain/audit"
	"payrolld/internal/domain/schedule"
	"payrolld/internal/platform/jobs"
	"payrolld/internal/transport/http/api"
	"payrolld/internal/transport/http/middleware"
	"payrolld/internal/transport/http/shared"
)

type Handler struct {
	Service       *schedule.Service
	Audit         *audit.Service
	Jobs          *jobs.Service
	GenerateCount int
}

func NewHandler(service *schedule.Service, auditSvc *audit.Service, jobsSvc *jobs.Service, generateCount int) *Handler {
	if generateCount <= 0 {
		generateCount = schedule.DefaultGenerateCount
	}
	return &Handler{Service: service, Audit: auditSvc, Jobs: jobsSvc, GenerateCount: generateCount}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll/schedules", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{scheduleID}", h.handleGet)
		r.Put("/{scheduleID}", h.handleUpdate)
		r.Delete("/{scheduleID}", h.handleDelete)
		r.Post("/{scheduleID}/generate", h.handleGenerate)
	})
	r.Post("/payroll/sweep", h.handleSweep)
}

type schedulePayload struct {
	Kind              string `json:"kind"`
	DayOfMonth        int    `json:"dayOfMonth"`
	FirstCutoffDay    int    `json:"firstCutoffDay"`
	LastCutoffDay     int    `json:"lastCutoffDay"`
	CutoffWeekday     string `json:"cutoffWeekday"`
	ReleaseOffsetDays int    `json:"releaseOffsetDays"`
}

type generatePayload struct {
	ReferenceDate string `json:"referenceDate"`
	Count         int    `json:"count"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	schedules, err := h.Service.ListSchedules(r.Context(), actor.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "schedule_list_failed", "failed to list cutoff schedules", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, schedules, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !h.validatePayload(w, r, payload) {
		return
	}

	id, err := h.Service.CreateSchedule(r.Context(), actor.TenantID, toSchedule(payload))
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidSchedule) {
			api.Fail(w, http.StatusBadRequest, "invalid_schedule", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "schedule_create_failed", "failed to create cutoff schedule", middleware.GetRequestID(r.Context()))
		return
	}
	h.recordAudit(r, actor.TenantID, actor.AccountID, "payroll.schedule.create", id, nil, payload)
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	sched, err := h.Service.GetSchedule(r.Context(), actor.TenantID, chi.URLParam(r, "scheduleID"))
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			api.Fail(w, http.StatusNotFound, "schedule_not_found", "cutoff schedule not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "schedule_get_failed", "failed to load cutoff schedule", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, sched, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !h.validatePayload(w, r, payload) {
		return
	}

	scheduleID := chi.URLParam(r, "scheduleID")
	before, err := h.Service.GetSchedule(r.Context(), actor.TenantID, scheduleID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			api.Fail(w, http.StatusNotFound, "schedule_not_found", "cutoff schedule not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "schedule_get_failed", "failed to load cutoff schedule", middleware.GetRequestID(r.Context()))
		return
	}

	updated := toSchedule(payload)
	updated.ID = scheduleID
	if err := h.Service.UpdateSchedule(r.Context(), actor.TenantID, updated); err != nil {
		switch {
		case errors.Is(err, schedule.ErrScheduleNotFound):
			api.Fail(w, http.StatusNotFound, "schedule_not_found", "cutoff schedule not found", middleware.GetRequestID(r.Context()))
		case errors.Is(err, schedule.ErrInvalidSchedule):
			api.Fail(w, http.StatusBadRequest, "invalid_schedule", err.Error(), middleware.GetRequestID(r.Context()))
		default:
			api.Fail(w, http.StatusInternalServerError, "schedule_update_failed", "failed to update cutoff schedule", middleware.GetRequestID(r.Context()))
		}
		return
	}
	h.recordAudit(r, actor.TenantID, actor.AccountID, "payroll.schedule.update", scheduleID, before, payload)
	api.Success(w, map[string]string{"id": scheduleID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	scheduleID := chi.URLParam(r, "scheduleID")
	if err := h.Service.DeleteSchedule(r.Context(), actor.TenantID, scheduleID); err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			api.Fail(w, http.StatusNotFound, "schedule_not_found", "cutoff schedule not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "schedule_delete_failed", "failed to delete cutoff schedule", middleware.GetRequestID(r.Context()))
		return
	}
	h.recordAudit(r, actor.TenantID, actor.AccountID, "payroll.schedule.delete", scheduleID, nil, nil)
	api.Success(w, map[string]string{"id": scheduleID}, middleware.GetRequestID(r.Context()))
}

// handleGenerate materializes upcoming periods for one schedule. Existing
// periods keep their status; only missing windows are inserted.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload generatePayload
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	reference := time.Now().UTC()
	if strings.TrimSpace(payload.ReferenceDate) != "" {
		parsed, err := shared.ParseDate(payload.ReferenceDate)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_reference_date", "referenceDate must be RFC3339 or YYYY-MM-DD", middleware.GetRequestID(r.Context()))
			return
		}
		reference = parsed
	}
	count := payload.Count
	if count <= 0 {
		count = h.GenerateCount
	}

	scheduleID := chi.URLParam(r, "scheduleID")
	result, err := h.Service.GenerateAndSync(r.Context(), actor.TenantID, scheduleID, reference, count)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			api.Fail(w, http.StatusNotFound, "schedule_not_found", "cutoff schedule not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "period_generate_failed", "failed to generate cutoff periods", middleware.GetRequestID(r.Context()))
		return
	}
	h.recordAudit(r, actor.TenantID, actor.AccountID, "payroll.period.generate", scheduleID, nil, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

// handleSweep runs the tenant-wide period sweep as a tracked job.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	details, err := h.Jobs.RunPeriodSweep(r.Context(), actor.TenantID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_sweep_failed", "failed to sweep cutoff periods", middleware.GetRequestID(r.Context()))
		return
	}
	h.recordAudit(r, actor.TenantID, actor.AccountID, "payroll.period.sweep", actor.TenantID, nil, details)
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) validatePayload(w http.ResponseWriter, r *http.Request, payload schedulePayload) bool {
	v := shared.NewValidator()
	v.Required("kind", payload.Kind, "kind is required")
	v.Enum("kind", payload.Kind, []string{schedule.KindMonthly, schedule.KindSemiMonthly, schedule.KindWeekly}, "kind must be monthly, semimonthly or weekly")
	switch strings.ToLower(strings.TrimSpace(payload.Kind)) {
	case schedule.KindMonthly:
		v.IntRange("dayOfMonth", payload.DayOfMonth, 1, 31)
	case schedule.KindSemiMonthly:
		v.IntRange("firstCutoffDay", payload.FirstCutoffDay, 1, 31)
		v.IntRange("lastCutoffDay", payload.LastCutoffDay, 1, 31)
	case schedule.KindWeekly:
		v.Required("cutoffWeekday", payload.CutoffWeekday, "cutoffWeekday is required for weekly schedules")
	}
	v.IntRange("releaseOffsetDays", payload.ReleaseOffsetDays, 0, 31)
	return !v.Reject(w, middleware.GetRequestID(r.Context()))
}

func (h *Handler) recordAudit(r *http.Request, tenantID, actorID, action, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), tenantID, actorID, action, "cutoff_schedule", entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func toSchedule(payload schedulePayload) schedule.Schedule {
	return schedule.Schedule{
		Kind:              strings.ToLower(strings.TrimSpace(payload.Kind)),
		DayOfMonth:        payload.DayOfMonth,
		FirstCutoffDay:    payload.FirstCutoffDay,
		LastCutoffDay:     payload.LastCutoffDay,
		CutoffWeekday:     strings.ToLower(strings.TrimSpace(payload.CutoffWeekday)),
		ReleaseOffsetDays: payload.ReleaseOffsetDays,
	}
}
