package cutoffhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payrolld/internal/auth"
	"payrolld/internal/domain/audit"
	"payrolld/internal/domain/cutoff"
	"payrolld/internal/domain/posting"
	"payrolld/internal/platform/jobs"
	"payrolld/internal/transport/http/api"
	"payrolld/internal/transport/http/middleware"
	"payrolld/internal/transport/http/shared"
)

type Handler struct {
	Service *cutoff.Service
	Jobs    *jobs.Service
	Audit   *audit.Service
}

func NewHandler(service *cutoff.Service, jobsSvc *jobs.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Jobs: jobsSvc, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll/periods", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{periodID}", h.handleGet)
		r.Get("/{periodID}/totals", h.handleTotals)
		r.Get("/{periodID}/history", h.handleHistory)
		r.Get("/{periodID}/tasks", h.handleTasks)
		r.Post("/{periodID}/compute", h.handleCompute)
		r.Post("/{periodID}/submit", h.transition(cutoff.ActionSubmit))
		r.Post("/{periodID}/approve", h.transition(cutoff.ActionApprove))
		r.Post("/{periodID}/reject", h.transition(cutoff.ActionReject))
		r.Post("/{periodID}/return", h.transition(cutoff.ActionReturn))
		r.Post("/{periodID}/resubmit", h.transition(cutoff.ActionResubmit))
		r.Post("/{periodID}/post", h.transition(cutoff.ActionPost))
		r.Post("/{periodID}/repost", h.transition(cutoff.ActionRepost))
		r.Post("/{periodID}/override", h.handleOverride)
	})
	r.Get("/payroll/tasks", h.handleMyTasks)
}

type transitionPayload struct {
	Remarks string `json:"remarks"`
}

type overridePayload struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 25, 200)
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" {
		v := shared.NewValidator()
		v.Enum("status", status, []string{
			cutoff.StatusTimekeeping, cutoff.StatusPending, cutoff.StatusProcessed,
			cutoff.StatusApproved, cutoff.StatusPosted, cutoff.StatusRejected,
		}, "unknown cutoff status")
		if v.Reject(w, middleware.GetRequestID(r.Context())) {
			return
		}
	}

	periods, total, err := h.Service.ListPeriods(r.Context(), actor.TenantID, status, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "period_list_failed", "failed to list cutoff periods", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"items":  periods,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	period, err := h.Service.GetPeriod(r.Context(), actor.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		h.writeError(w, r, err, "period_get_failed", "failed to load cutoff period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	totals, err := h.Service.GetTotals(r.Context(), actor.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		h.writeError(w, r, err, "period_totals_failed", "failed to load cutoff totals")
		return
	}
	api.Success(w, totals, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	history, err := h.Service.ListHistory(r.Context(), actor.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		h.writeError(w, r, err, "period_history_failed", "failed to load status history")
		return
	}
	api.Success(w, history, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	tasks, err := h.Service.ListTasks(r.Context(), actor.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		h.writeError(w, r, err, "task_list_failed", "failed to list approval tasks")
		return
	}
	api.Success(w, tasks, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	tasks, err := h.Service.ListTasksForApprover(r.Context(), actor.TenantID, actor.AccountID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "task_list_failed", "failed to list approval tasks", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, tasks, middleware.GetRequestID(r.Context()))
}

// handleCompute kicks the salary computation job for every employee linked to
// the period, then moves the period from timekeeping to pending.
func (h *Handler) handleCompute(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	periodID := chi.URLParam(r, "periodID")
	details, err := h.Jobs.RunSalaryComputation(r.Context(), actor.TenantID, periodID)
	if err != nil {
		h.writeError(w, r, err, "salary_compute_failed", "failed to run salary computation")
		return
	}
	h.recordAudit(r, actor, "payroll.period.compute", periodID, nil, details)
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) transition(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.GetActor(r.Context())
		if !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
			return
		}
		var payload transitionPayload
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
				return
			}
		}

		periodID := chi.URLParam(r, "periodID")
		result, err := h.Service.Transition(r.Context(), actor.TenantID, periodID, action, actor.AccountID, payload.Remarks)
		if err != nil {
			h.writeError(w, r, err, "transition_failed", "failed to apply workflow action")
			return
		}
		h.recordAudit(r, actor, "payroll.period."+action, periodID, nil, map[string]any{
			"status":  result.Period.Status,
			"remarks": payload.Remarks,
		})
		api.Success(w, result, middleware.GetRequestID(r.Context()))
	}
}

// handleOverride lets an administrator force a processed period to approved or
// rejected without walking the approval chain.
func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if actor.Role != auth.RoleAdmin {
		api.Fail(w, http.StatusForbidden, "forbidden", "admin role required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload overridePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	toStatus := strings.ToLower(strings.TrimSpace(payload.Status))
	v := shared.NewValidator()
	v.Required("status", toStatus, "status is required")
	v.Enum("status", toStatus, []string{cutoff.StatusApproved, cutoff.StatusRejected}, "override status must be approved or rejected")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	periodID := chi.URLParam(r, "periodID")
	period, err := h.Service.Override(r.Context(), actor.TenantID, periodID, toStatus, actor.AccountID, payload.Remarks)
	if err != nil {
		h.writeError(w, r, err, "override_failed", "failed to override cutoff status")
		return
	}
	h.recordAudit(r, actor, "payroll.period.override", periodID, nil, map[string]any{
		"status":  toStatus,
		"remarks": payload.Remarks,
	})
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode, fallbackMessage string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, cutoff.ErrPeriodNotFound) || errors.Is(err, posting.ErrPeriodNotFound):
		api.Fail(w, http.StatusNotFound, "period_not_found", "cutoff period not found", requestID)
	case errors.Is(err, cutoff.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, cutoff.ErrOpenApprovalTasks):
		api.Fail(w, http.StatusConflict, "open_approval_tasks", err.Error(), requestID)
	case errors.Is(err, cutoff.ErrTaskNotFound):
		api.Fail(w, http.StatusForbidden, "no_open_task", err.Error(), requestID)
	case errors.Is(err, cutoff.ErrNoApprovers):
		api.Fail(w, http.StatusConflict, "no_approvers", err.Error(), requestID)
	case errors.Is(err, cutoff.ErrUnknownAction):
		api.Fail(w, http.StatusBadRequest, "unknown_action", err.Error(), requestID)
	case errors.Is(err, posting.ErrNotApproved):
		api.Fail(w, http.StatusConflict, "not_approved", err.Error(), requestID)
	case errors.Is(err, posting.ErrAlreadyPosted):
		api.Fail(w, http.StatusConflict, "already_posted", err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, fallbackCode, fallbackMessage, requestID)
	}
}

func (h *Handler) recordAudit(r *http.Request, actor auth.ActorContext, action, periodID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.TenantID, actor.AccountID, action, "cutoff_period", periodID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
