package cutoff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"payrolld/internal/domain/posting"
)

type Service struct {
	store     StoreAPI
	poster    Poster
	directory ApproverDirectory
	notifier  Notifier
	mailer    TaskMailer
}

func NewService(store StoreAPI, poster Poster, directory ApproverDirectory, notifier Notifier, mailer TaskMailer) *Service {
	return &Service{store: store, poster: poster, directory: directory, notifier: notifier, mailer: mailer}
}

// TransitionResult is the outcome of one workflow action. Posting is set
// only for post and repost actions.
type TransitionResult struct {
	Period  Period              `json:"period"`
	Posting *posting.PostResult `json:"posting,omitempty"`
}

// Transition applies one workflow action to a period. Unknown actions and
// actions illegal for the period's current status fail fast; side effects
// (tasks, history, notifications) fire only after the status change commits.
func (s *Service) Transition(ctx context.Context, tenantID, periodID, action, actorID, remarks string) (TransitionResult, error) {
	period, err := s.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return TransitionResult{}, err
	}

	switch action {
	case ActionSubmit:
		err = s.submit(ctx, tenantID, period, actorID, remarks)
	case ActionApprove:
		err = s.approve(ctx, tenantID, period, actorID, remarks)
	case ActionReject:
		err = s.reject(ctx, tenantID, period, actorID, remarks)
	case ActionResubmit:
		err = s.resubmit(ctx, tenantID, period, actorID, remarks)
	case ActionReturn:
		err = s.returnToTimekeeping(ctx, tenantID, period, actorID, remarks)
	case ActionPost:
		result, postErr := s.post(ctx, tenantID, period, actorID, remarks)
		if postErr != nil {
			return TransitionResult{}, postErr
		}
		return s.resolved(ctx, tenantID, periodID, result)
	case ActionRepost:
		result, postErr := s.repost(ctx, tenantID, period, actorID, remarks)
		if postErr != nil {
			return TransitionResult{}, postErr
		}
		return s.resolved(ctx, tenantID, periodID, result)
	default:
		return TransitionResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return TransitionResult{}, err
	}
	return s.resolved(ctx, tenantID, periodID, nil)
}

func (s *Service) resolved(ctx context.Context, tenantID, periodID string, result *posting.PostResult) (TransitionResult, error) {
	period, err := s.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Period: period, Posting: result}, nil
}

// submit moves a computed period into the approval chain. Resubmitting an
// already-processed period is allowed only once its previous round of
// approval tasks has fully closed.
func (s *Service) submit(ctx context.Context, tenantID string, period Period, actorID, remarks string) error {
	switch period.Status {
	case StatusPending:
	case StatusProcessed:
		open, err := s.store.OpenTaskCount(ctx, tenantID, period.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrOpenApprovalTasks
		}
	default:
		return fmt.Errorf("%w: cannot submit a %s period", ErrInvalidTransition, period.Status)
	}

	if period.Status == StatusPending {
		if err := s.store.UpdateStatus(ctx, tenantID, period.ID, StatusPending, StatusProcessed); err != nil {
			return err
		}
	}
	if err := s.openLevelTasks(ctx, tenantID, period.ID, FirstApprovalLevel); err != nil {
		return err
	}
	s.record(ctx, tenantID, period, actorID, ActionSubmit, StatusProcessed, FirstApprovalLevel, remarks)
	return nil
}

func (s *Service) approve(ctx context.Context, tenantID string, period Period, actorID, remarks string) error {
	if period.Status != StatusProcessed {
		return fmt.Errorf("%w: cannot approve a %s period", ErrInvalidTransition, period.Status)
	}
	task, err := s.store.OpenTaskForApprover(ctx, tenantID, period.ID, actorID)
	if err != nil {
		return err
	}
	if err := s.store.CloseTask(ctx, tenantID, task.ID, TaskApproved, nullIfEmpty(remarks)); err != nil {
		return err
	}

	open, err := s.store.OpenTaskCount(ctx, tenantID, period.ID)
	if err != nil {
		return err
	}
	if open > 0 {
		// Other approvers at this level still have the period.
		return nil
	}

	chain, err := s.directory.ApprovalChain(ctx, tenantID)
	if err != nil {
		return err
	}
	next := task.Level + 1
	if len(chain[next]) > 0 {
		if err := s.openLevelTasks(ctx, tenantID, period.ID, next); err != nil {
			return err
		}
		s.record(ctx, tenantID, period, actorID, ActionApprove, StatusProcessed, task.Level, remarks)
		return nil
	}

	if err := s.store.UpdateStatus(ctx, tenantID, period.ID, StatusProcessed, StatusApproved); err != nil {
		return err
	}
	s.record(ctx, tenantID, period, actorID, ActionApprove, StatusApproved, task.Level, remarks)
	return nil
}

// reject short-circuits the chain: the period drops to rejected and every
// remaining open task is closed, whatever its level.
func (s *Service) reject(ctx context.Context, tenantID string, period Period, actorID, remarks string) error {
	if period.Status != StatusProcessed {
		return fmt.Errorf("%w: cannot reject a %s period", ErrInvalidTransition, period.Status)
	}
	task, err := s.store.OpenTaskForApprover(ctx, tenantID, period.ID, actorID)
	if err != nil {
		return err
	}
	if err := s.store.CloseTask(ctx, tenantID, task.ID, TaskRejected, nullIfEmpty(remarks)); err != nil {
		return err
	}
	if err := s.store.CloseOpenTasks(ctx, tenantID, period.ID); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, tenantID, period.ID, StatusProcessed, StatusRejected); err != nil {
		return err
	}
	s.record(ctx, tenantID, period, actorID, ActionReject, StatusRejected, task.Level, remarks)
	return nil
}

func (s *Service) resubmit(ctx context.Context, tenantID string, period Period, actorID, remarks string) error {
	if period.Status != StatusRejected {
		return fmt.Errorf("%w: cannot resubmit a %s period", ErrInvalidTransition, period.Status)
	}
	// Stray open tasks from an interrupted round must not survive into the
	// new one.
	if err := s.store.CloseOpenTasks(ctx, tenantID, period.ID); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, tenantID, period.ID, StatusRejected, StatusProcessed); err != nil {
		return err
	}
	if err := s.openLevelTasks(ctx, tenantID, period.ID, FirstApprovalLevel); err != nil {
		return err
	}
	s.record(ctx, tenantID, period, actorID, ActionResubmit, StatusProcessed, FirstApprovalLevel, remarks)
	return nil
}

func (s *Service) returnToTimekeeping(ctx context.Context, tenantID string, period Period, actorID, remarks string) error {
	switch period.Status {
	case StatusPending, StatusProcessed, StatusRejected:
	default:
		return fmt.Errorf("%w: cannot return a %s period to timekeeping", ErrInvalidTransition, period.Status)
	}
	if err := s.store.CloseOpenTasks(ctx, tenantID, period.ID); err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, tenantID, period.ID, period.Status, StatusTimekeeping); err != nil {
		return err
	}
	s.record(ctx, tenantID, period, actorID, ActionReturn, StatusTimekeeping, ManualOverrideLevel, remarks)
	return nil
}

// post commits the period's ledger effects. The status only advances when
// every employee posted; a partially failed batch leaves the period
// approved so the failed subset can be retried.
func (s *Service) post(ctx context.Context, tenantID string, period Period, actorID, remarks string) (*posting.PostResult, error) {
	if period.Status != StatusApproved {
		return nil, fmt.Errorf("%w: cannot post a %s period", ErrInvalidTransition, period.Status)
	}
	result, err := s.poster.Post(ctx, tenantID, period.ID, false)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return &result, nil
	}
	if err := s.store.UpdateStatus(ctx, tenantID, period.ID, StatusApproved, StatusPosted); err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, period, actorID, ActionPost, StatusPosted, ManualOverrideLevel, remarks)
	return &result, nil
}

// repost reverses the prior posting and reapplies it. The status stays
// posted throughout; only the ledger effects are replaced.
func (s *Service) repost(ctx context.Context, tenantID string, period Period, actorID, remarks string) (*posting.PostResult, error) {
	if period.Status != StatusPosted {
		return nil, fmt.Errorf("%w: cannot repost a %s period", ErrInvalidTransition, period.Status)
	}
	if err := s.poster.Reverse(ctx, tenantID, period.ID); err != nil {
		return nil, err
	}
	result, err := s.poster.Post(ctx, tenantID, period.ID, true)
	if err != nil {
		return nil, err
	}
	s.record(ctx, tenantID, period, actorID, ActionRepost, StatusPosted, ManualOverrideLevel, remarks)
	return &result, nil
}

// Override forces a processed period to approved or rejected outside the
// chain, closing whatever tasks were open. History carries level 0 so
// overrides stay distinguishable from chain-driven entries.
func (s *Service) Override(ctx context.Context, tenantID, periodID, toStatus, actorID, remarks string) (Period, error) {
	if toStatus != StatusApproved && toStatus != StatusRejected {
		return Period{}, fmt.Errorf("%w: override target must be approved or rejected", ErrInvalidTransition)
	}
	period, err := s.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return Period{}, err
	}
	if period.Status != StatusProcessed {
		return Period{}, fmt.Errorf("%w: cannot override a %s period", ErrInvalidTransition, period.Status)
	}
	if err := s.store.CloseOpenTasks(ctx, tenantID, periodID); err != nil {
		return Period{}, err
	}
	if err := s.store.UpdateStatus(ctx, tenantID, periodID, StatusProcessed, toStatus); err != nil {
		return Period{}, err
	}
	s.record(ctx, tenantID, period, actorID, ActionOverride, toStatus, ManualOverrideLevel, remarks)
	return s.store.GetPeriod(ctx, tenantID, periodID)
}

// MarkComputed records the external computation job and moves the period
// out of timekeeping.
func (s *Service) MarkComputed(ctx context.Context, tenantID, periodID, jobID string) error {
	if err := s.store.UpdateStatus(ctx, tenantID, periodID, StatusTimekeeping, StatusPending); err != nil {
		return err
	}
	return s.store.SetPayrollJob(ctx, tenantID, periodID, jobID)
}

func (s *Service) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	return s.store.GetPeriod(ctx, tenantID, periodID)
}

func (s *Service) ListPeriods(ctx context.Context, tenantID, status string, limit, offset int) ([]Period, int, error) {
	periods, err := s.store.ListPeriods(ctx, tenantID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.store.CountPeriods(ctx, tenantID, status)
	return periods, count, err
}

func (s *Service) ListTasks(ctx context.Context, tenantID, periodID string) ([]ApprovalTask, error) {
	return s.store.ListTasks(ctx, tenantID, periodID)
}

func (s *Service) ListTasksForApprover(ctx context.Context, tenantID, approverID string) ([]ApprovalTask, error) {
	return s.store.ListTasksForApprover(ctx, tenantID, approverID)
}

func (s *Service) ListHistory(ctx context.Context, tenantID, periodID string) ([]HistoryEntry, error) {
	return s.store.ListHistory(ctx, tenantID, periodID)
}

func (s *Service) GetTotals(ctx context.Context, tenantID, periodID string) (Totals, error) {
	return s.store.GetTotals(ctx, tenantID, periodID)
}

func (s *Service) EmployeeLinkIDs(ctx context.Context, tenantID, periodID string) ([]string, error) {
	return s.store.ListEmployeeLinkIDs(ctx, tenantID, periodID)
}

func (s *Service) openLevelTasks(ctx context.Context, tenantID, periodID string, level int) error {
	approvers, err := s.directory.ApproversByLevel(ctx, tenantID, level)
	if err != nil {
		return err
	}
	if len(approvers) == 0 {
		return fmt.Errorf("%w at level %d", ErrNoApprovers, level)
	}

	tasks := make([]ApprovalTask, len(approvers))
	for i, approverID := range approvers {
		tasks[i] = ApprovalTask{
			ID:         uuid.NewString(),
			PeriodID:   periodID,
			ApproverID: approverID,
			Level:      level,
			Status:     TaskOpen,
		}
	}
	if err := s.store.CreateTasks(ctx, tenantID, tasks); err != nil {
		return err
	}
	for _, task := range tasks {
		if err := s.mailer.NotifyAssignment(ctx, tenantID, task); err != nil {
			slog.Warn("approval task email failed", "task", task.ID, "approver", task.ApproverID, "error", err)
		}
	}
	return nil
}

// record writes the history entry and fans out the transition notification.
// Neither may block or fail the transition itself.
func (s *Service) record(ctx context.Context, tenantID string, period Period, actorID, action, toStatus string, level int, remarks string) {
	entry := HistoryEntry{
		ID:         uuid.NewString(),
		PeriodID:   period.ID,
		ActorID:    actorID,
		Action:     action,
		FromStatus: period.Status,
		ToStatus:   toStatus,
		Level:      level,
		Remarks:    remarks,
	}
	if err := s.store.AddHistory(ctx, tenantID, entry); err != nil {
		slog.Warn("cutoff history write failed", "period", period.ID, "action", action, "error", err)
	}

	chain, err := s.directory.ApprovalChain(ctx, tenantID)
	if err != nil {
		slog.Warn("approval chain lookup failed", "tenant", tenantID, "error", err)
		return
	}
	recipients := make([]string, 0)
	for _, accounts := range chain {
		recipients = append(recipients, accounts...)
	}
	message := fmt.Sprintf("cutoff %s: %s (%s -> %s)", period.ID, action, period.Status, toStatus)
	s.notifier.Send(ctx, tenantID, actorID, recipients, message, NotificationCutoffStatus, period.ID)
}

func nullIfEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
