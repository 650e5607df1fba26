package cutoff

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolld/internal/domain/posting"
)

type wfStore struct {
	periods map[string]Period
	tasks   []*ApprovalTask
	history []HistoryEntry
}

func newWFStore() *wfStore {
	return &wfStore{periods: map[string]Period{}}
}

func (s *wfStore) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	p, ok := s.periods[periodID]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return p, nil
}

func (s *wfStore) ListPeriods(ctx context.Context, tenantID, status string, limit, offset int) ([]Period, error) {
	out := make([]Period, 0)
	for _, p := range s.periods {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *wfStore) CountPeriods(ctx context.Context, tenantID, status string) (int, error) {
	periods, _ := s.ListPeriods(ctx, tenantID, status, 0, 0)
	return len(periods), nil
}

func (s *wfStore) UpdateStatus(ctx context.Context, tenantID, periodID, from, to string) error {
	p, ok := s.periods[periodID]
	if !ok || p.Status != from {
		return fmt.Errorf("%w: period %s is no longer %s", ErrInvalidTransition, periodID, from)
	}
	p.Status = to
	s.periods[periodID] = p
	return nil
}

func (s *wfStore) SetPayrollJob(ctx context.Context, tenantID, periodID, jobID string) error {
	p, ok := s.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	p.PayrollJobID = &jobID
	s.periods[periodID] = p
	return nil
}

func (s *wfStore) CreateTasks(ctx context.Context, tenantID string, tasks []ApprovalTask) error {
	for i := range tasks {
		t := tasks[i]
		t.CreatedAt = time.Now().UTC()
		s.tasks = append(s.tasks, &t)
	}
	return nil
}

func (s *wfStore) OpenTaskCount(ctx context.Context, tenantID, periodID string) (int, error) {
	count := 0
	for _, t := range s.tasks {
		if t.PeriodID == periodID && t.Status == TaskOpen {
			count++
		}
	}
	return count, nil
}

func (s *wfStore) OpenTaskForApprover(ctx context.Context, tenantID, periodID, approverID string) (ApprovalTask, error) {
	for _, t := range s.tasks {
		if t.PeriodID == periodID && t.ApproverID == approverID && t.Status == TaskOpen {
			return *t, nil
		}
	}
	return ApprovalTask{}, ErrTaskNotFound
}

func (s *wfStore) CloseTask(ctx context.Context, tenantID, taskID, status string, remarks *string) error {
	for _, t := range s.tasks {
		if t.ID == taskID && t.Status == TaskOpen {
			t.Status = status
			if remarks != nil {
				t.Remarks = remarks
			}
			return nil
		}
	}
	return ErrTaskNotFound
}

func (s *wfStore) CloseOpenTasks(ctx context.Context, tenantID, periodID string) error {
	for _, t := range s.tasks {
		if t.PeriodID == periodID && t.Status == TaskOpen {
			t.Status = TaskClosed
		}
	}
	return nil
}

func (s *wfStore) ListTasks(ctx context.Context, tenantID, periodID string) ([]ApprovalTask, error) {
	out := make([]ApprovalTask, 0)
	for _, t := range s.tasks {
		if t.PeriodID == periodID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *wfStore) ListTasksForApprover(ctx context.Context, tenantID, approverID string) ([]ApprovalTask, error) {
	out := make([]ApprovalTask, 0)
	for _, t := range s.tasks {
		if t.ApproverID == approverID && t.Status == TaskOpen {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *wfStore) AddHistory(ctx context.Context, tenantID string, entry HistoryEntry) error {
	entry.CreatedAt = time.Now().UTC()
	s.history = append(s.history, entry)
	return nil
}

func (s *wfStore) ListHistory(ctx context.Context, tenantID, periodID string) ([]HistoryEntry, error) {
	out := make([]HistoryEntry, 0)
	for _, e := range s.history {
		if e.PeriodID == periodID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *wfStore) GetTotals(ctx context.Context, tenantID, periodID string) (Totals, error) {
	if _, ok := s.periods[periodID]; !ok {
		return Totals{}, ErrPeriodNotFound
	}
	return Totals{PeriodID: periodID}, nil
}

func (s *wfStore) ListEmployeeLinkIDs(ctx context.Context, tenantID, periodID string) ([]string, error) {
	return nil, nil
}

func (s *wfStore) openTasksAtLevel(periodID string, level int) []ApprovalTask {
	out := make([]ApprovalTask, 0)
	for _, t := range s.tasks {
		if t.PeriodID == periodID && t.Level == level && t.Status == TaskOpen {
			out = append(out, *t)
		}
	}
	return out
}

type fakeDirectory struct {
	chain map[int][]string
}

func (d *fakeDirectory) ApproversByLevel(ctx context.Context, tenantID string, level int) ([]string, error) {
	return d.chain[level], nil
}

func (d *fakeDirectory) ApprovalChain(ctx context.Context, tenantID string) (map[int][]string, error) {
	return d.chain, nil
}

type fakeNotifier struct {
	sent int
}

func (n *fakeNotifier) Send(ctx context.Context, tenantID, senderID string, recipientIDs []string, message, kind, contextID string) {
	n.sent++
}

type fakeMailer struct {
	assigned []string
}

func (m *fakeMailer) NotifyAssignment(ctx context.Context, tenantID string, task ApprovalTask) error {
	m.assigned = append(m.assigned, task.ApproverID)
	return nil
}

type fakePoster struct {
	result   posting.PostResult
	posts    []bool
	reversed int
}

func (p *fakePoster) Post(ctx context.Context, tenantID, periodID string, reposting bool) (posting.PostResult, error) {
	p.posts = append(p.posts, reposting)
	return p.result, nil
}

func (p *fakePoster) Reverse(ctx context.Context, tenantID, periodID string) error {
	p.reversed++
	return nil
}

type workflowFixture struct {
	store    *wfStore
	poster   *fakePoster
	notifier *fakeNotifier
	mailer   *fakeMailer
	svc      *Service
}

func newWorkflow(status string, chain map[int][]string) *workflowFixture {
	f := &workflowFixture{
		store:    newWFStore(),
		poster:   &fakePoster{result: posting.PostResult{Success: true, ProcessedCount: 3}},
		notifier: &fakeNotifier{},
		mailer:   &fakeMailer{},
	}
	f.store.periods["p1"] = Period{ID: "p1", ScheduleID: "sch-1", Status: status}
	f.svc = NewService(f.store, f.poster, &fakeDirectory{chain: chain}, f.notifier, f.mailer)
	return f
}

func (f *workflowFixture) transition(t *testing.T, action, actorID string) TransitionResult {
	t.Helper()
	result, err := f.svc.Transition(context.Background(), "t1", "p1", action, actorID, "")
	require.NoError(t, err)
	return result
}

func TestSubmitCreatesLevelOneTasks(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice", "amy"}, 2: {"bob"}})

	result := f.transition(t, ActionSubmit, "clerk")
	assert.Equal(t, StatusProcessed, result.Period.Status)
	require.Len(t, f.store.openTasksAtLevel("p1", 1), 2)
	assert.Empty(t, f.store.openTasksAtLevel("p1", 2))
	assert.ElementsMatch(t, []string{"alice", "amy"}, f.mailer.assigned)
	require.Len(t, f.store.history, 1)
	assert.Equal(t, ActionSubmit, f.store.history[0].Action)
	assert.Equal(t, 1, f.notifier.sent)
}

func TestSubmitBlockedWhileTasksOpen(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice"}})
	f.transition(t, ActionSubmit, "clerk")

	_, err := f.svc.Transition(context.Background(), "t1", "p1", ActionSubmit, "clerk", "")
	require.ErrorIs(t, err, ErrOpenApprovalTasks)
}

func TestSubmitRequiresComputedPeriod(t *testing.T) {
	f := newWorkflow(StatusTimekeeping, map[int][]string{1: {"alice"}})
	_, err := f.svc.Transition(context.Background(), "t1", "p1", ActionSubmit, "clerk", "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTwoLevelChainApprovesInOrder(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice"}, 2: {"bob"}})
	f.transition(t, ActionSubmit, "clerk")

	// Bob has no task yet: level 2 opens only after level 1 clears.
	_, err := f.svc.Transition(context.Background(), "t1", "p1", ActionApprove, "bob", "")
	require.ErrorIs(t, err, ErrTaskNotFound)

	result := f.transition(t, ActionApprove, "alice")
	assert.Equal(t, StatusProcessed, result.Period.Status)
	require.Len(t, f.store.openTasksAtLevel("p1", 2), 1)

	result = f.transition(t, ActionApprove, "bob")
	assert.Equal(t, StatusApproved, result.Period.Status)
	assert.Empty(t, f.store.openTasksAtLevel("p1", 1))
	assert.Empty(t, f.store.openTasksAtLevel("p1", 2))
}

func TestEveryApproverAtLevelMustApprove(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice", "amy"}})
	f.transition(t, ActionSubmit, "clerk")

	result := f.transition(t, ActionApprove, "alice")
	assert.Equal(t, StatusProcessed, result.Period.Status)
	require.Len(t, f.store.openTasksAtLevel("p1", 1), 1)

	result = f.transition(t, ActionApprove, "amy")
	assert.Equal(t, StatusApproved, result.Period.Status)
}

func TestLevelOneRejectionNeverOpensLevelTwo(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice"}, 2: {"bob"}})
	f.transition(t, ActionSubmit, "clerk")

	result := f.transition(t, ActionReject, "alice")
	assert.Equal(t, StatusRejected, result.Period.Status)
	assert.Empty(t, f.store.openTasksAtLevel("p1", 1))
	assert.Empty(t, f.store.openTasksAtLevel("p1", 2))
	for _, task := range f.store.tasks {
		assert.NotEqual(t, 2, task.Level, "no level-2 task may ever exist")
	}
}

func TestResubmitAfterRejectionRestartsChain(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice"}, 2: {"bob"}})
	f.transition(t, ActionSubmit, "clerk")
	f.transition(t, ActionReject, "alice")

	result := f.transition(t, ActionResubmit, "clerk")
	assert.Equal(t, StatusProcessed, result.Period.Status)
	require.Len(t, f.store.openTasksAtLevel("p1", 1), 1)

	history, err := f.svc.ListHistory(context.Background(), "t1", "p1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ActionResubmit, history[2].Action)
}

func TestReturnToTimekeepingClosesTasks(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice"}})
	f.transition(t, ActionSubmit, "clerk")

	result := f.transition(t, ActionReturn, "manager")
	assert.Equal(t, StatusTimekeeping, result.Period.Status)
	open, err := f.store.OpenTaskCount(context.Background(), "t1", "p1")
	require.NoError(t, err)
	assert.Zero(t, open)
}

func TestReturnRejectedAfterApproval(t *testing.T) {
	f := newWorkflow(StatusApproved, nil)
	_, err := f.svc.Transition(context.Background(), "t1", "p1", ActionReturn, "manager", "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPostAdvancesOnlyOnFullSuccess(t *testing.T) {
	f := newWorkflow(StatusApproved, map[int][]string{1: {"alice"}})

	result := f.transition(t, ActionPost, "alice")
	assert.Equal(t, StatusPosted, result.Period.Status)
	require.NotNil(t, result.Posting)
	assert.True(t, result.Posting.Success)
	require.Equal(t, []bool{false}, f.poster.posts)
}

func TestPartialPostingFailureKeepsPeriodApproved(t *testing.T) {
	f := newWorkflow(StatusApproved, map[int][]string{1: {"alice"}})
	f.poster.result = posting.PostResult{
		Success:        false,
		ProcessedCount: 2,
		Errors:         []posting.EmployeeError{{EmployeeID: "emp-9", Category: posting.CategoryDeduction, Reason: "plan missing"}},
	}

	result := f.transition(t, ActionPost, "alice")
	assert.Equal(t, StatusApproved, result.Period.Status)
	require.NotNil(t, result.Posting)
	assert.False(t, result.Posting.Success)
	assert.Equal(t, 2, result.Posting.ProcessedCount)
}

func TestPostRequiresApprovedStatus(t *testing.T) {
	f := newWorkflow(StatusProcessed, nil)
	_, err := f.svc.Transition(context.Background(), "t1", "p1", ActionPost, "alice", "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRepostReversesBeforePosting(t *testing.T) {
	f := newWorkflow(StatusPosted, map[int][]string{1: {"alice"}})

	result := f.transition(t, ActionRepost, "alice")
	assert.Equal(t, StatusPosted, result.Period.Status)
	assert.Equal(t, 1, f.poster.reversed)
	require.Equal(t, []bool{true}, f.poster.posts)
}

func TestOverrideWritesLevelZeroHistory(t *testing.T) {
	f := newWorkflow(StatusPending, map[int][]string{1: {"alice"}})
	f.transition(t, ActionSubmit, "clerk")

	period, err := f.svc.Override(context.Background(), "t1", "p1", StatusApproved, "boss", "escalated")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, period.Status)
	open, err := f.store.OpenTaskCount(context.Background(), "t1", "p1")
	require.NoError(t, err)
	assert.Zero(t, open)

	history, _ := f.svc.ListHistory(context.Background(), "t1", "p1")
	last := history[len(history)-1]
	assert.Equal(t, ManualOverrideLevel, last.Level)
	assert.Equal(t, ActionOverride, last.Action)
}

func TestUnknownActionRejected(t *testing.T) {
	f := newWorkflow(StatusPending, nil)
	_, err := f.svc.Transition(context.Background(), "t1", "p1", "archive", "clerk", "")
	require.ErrorIs(t, err, ErrUnknownAction)
}
