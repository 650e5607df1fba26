package posting

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrolld/internal/platform/metrics"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type fakeState struct {
	periodStatus  map[string]string
	links         map[string][]EmployeeLink
	dedLines      map[string][]SalaryLine
	allLines      map[string][]SalaryLine
	contributions map[string][]Contribution
	dedPlans      map[string]Plan
	allPlans      map[string]Plan
	dedEntries    []LedgerEntry
	allEntries    []LedgerEntry
	govRecords    []GovernmentPaymentRecord
}

func newFakeState() *fakeState {
	return &fakeState{
		periodStatus:  map[string]string{},
		links:         map[string][]EmployeeLink{},
		dedLines:      map[string][]SalaryLine{},
		allLines:      map[string][]SalaryLine{},
		contributions: map[string][]Contribution{},
		dedPlans:      map[string]Plan{},
		allPlans:      map[string]Plan{},
	}
}

func (s *fakeState) clone() *fakeState {
	c := newFakeState()
	for k, v := range s.periodStatus {
		c.periodStatus[k] = v
	}
	for k, v := range s.links {
		c.links[k] = append([]EmployeeLink(nil), v...)
	}
	for k, v := range s.dedLines {
		c.dedLines[k] = append([]SalaryLine(nil), v...)
	}
	for k, v := range s.allLines {
		c.allLines[k] = append([]SalaryLine(nil), v...)
	}
	for k, v := range s.contributions {
		c.contributions[k] = append([]Contribution(nil), v...)
	}
	for k, v := range s.dedPlans {
		c.dedPlans[k] = v
	}
	for k, v := range s.allPlans {
		c.allPlans[k] = v
	}
	c.dedEntries = append([]LedgerEntry(nil), s.dedEntries...)
	c.allEntries = append([]LedgerEntry(nil), s.allEntries...)
	c.govRecords = append([]GovernmentPaymentRecord(nil), s.govRecords...)
	return c
}

// fakeLedgerStore gives each transaction a deep copy of the state; commit
// swaps it in, rollback discards it. That mirrors the isolation the real
// store gets from one pgx transaction per employee.
type fakeLedgerStore struct {
	state *fakeState
}

func (f *fakeLedgerStore) PeriodStatus(ctx context.Context, tenantID, periodID string) (string, error) {
	status, ok := f.state.periodStatus[periodID]
	if !ok {
		return "", ErrPeriodNotFound
	}
	return status, nil
}

func (f *fakeLedgerStore) HasGovernmentRecords(ctx context.Context, tenantID, periodID string) (bool, error) {
	for _, r := range f.state.govRecords {
		if r.CutoffPeriodID == periodID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerStore) ListEmployeeLinks(ctx context.Context, tenantID, periodID string) ([]EmployeeLink, error) {
	return f.state.links[periodID], nil
}

func (f *fakeLedgerStore) Begin(ctx context.Context) (TxStore, error) {
	return &fakeTx{store: f, work: f.state.clone()}, nil
}

type fakeTx struct {
	store *fakeLedgerStore
	work  *fakeState
	done  bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.store.state = t.work
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func (t *fakeTx) PendingDeductionLines(ctx context.Context, tenantID, recordID string) ([]SalaryLine, error) {
	return pending(t.work.dedLines[recordID]), nil
}

func (t *fakeTx) PendingAllowanceLines(ctx context.Context, tenantID, recordID string) ([]SalaryLine, error) {
	return pending(t.work.allLines[recordID]), nil
}

func pending(lines []SalaryLine) []SalaryLine {
	out := make([]SalaryLine, 0, len(lines))
	for _, l := range lines {
		if !l.Posted {
			out = append(out, l)
		}
	}
	return out
}

func (t *fakeTx) Contributions(ctx context.Context, tenantID, recordID string) ([]Contribution, error) {
	return t.work.contributions[recordID], nil
}

func (t *fakeTx) DeductionPlanForUpdate(ctx context.Context, tenantID, planID string) (Plan, error) {
	p, ok := t.work.dedPlans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

func (t *fakeTx) AllowancePlanForUpdate(ctx context.Context, tenantID, planID string) (Plan, error) {
	p, ok := t.work.allPlans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

func (t *fakeTx) UpdateDeductionPlan(ctx context.Context, tenantID string, p Plan) error {
	t.work.dedPlans[p.ID] = p
	return nil
}

func (t *fakeTx) UpdateAllowancePlan(ctx context.Context, tenantID string, p Plan) error {
	t.work.allPlans[p.ID] = p
	return nil
}

func (t *fakeTx) InsertDeductionEntry(ctx context.Context, tenantID string, e LedgerEntry) error {
	t.work.dedEntries = append(t.work.dedEntries, e)
	return nil
}

func (t *fakeTx) InsertAllowanceEntry(ctx context.Context, tenantID string, e LedgerEntry) error {
	t.work.allEntries = append(t.work.allEntries, e)
	return nil
}

func (t *fakeTx) InsertGovernmentRecord(ctx context.Context, tenantID string, r GovernmentPaymentRecord) error {
	t.work.govRecords = append(t.work.govRecords, r)
	return nil
}

func (t *fakeTx) MarkDeductionLinesPosted(ctx context.Context, tenantID string, ids []string) error {
	markPosted(t.work.dedLines, ids, true)
	return nil
}

func (t *fakeTx) MarkAllowanceLinesPosted(ctx context.Context, tenantID string, ids []string) error {
	markPosted(t.work.allLines, ids, true)
	return nil
}

func markPosted(lines map[string][]SalaryLine, ids []string, posted bool) {
	idSet := map[string]bool{}
	for _, id := range ids {
		idSet[id] = true
	}
	for record, ls := range lines {
		for i := range ls {
			if len(ids) == 0 || idSet[ls[i].ID] {
				ls[i].Posted = posted
			}
		}
		lines[record] = ls
	}
}

func (t *fakeTx) DeductionSumsByPlan(ctx context.Context, tenantID, periodID string) (map[string]decimal.Decimal, error) {
	return sums(t.work.dedEntries, periodID), nil
}

func (t *fakeTx) AllowanceSumsByPlan(ctx context.Context, tenantID, periodID string) (map[string]decimal.Decimal, error) {
	return sums(t.work.allEntries, periodID), nil
}

func sums(entries []LedgerEntry, periodID string) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, e := range entries {
		if e.CutoffPeriodID != periodID {
			continue
		}
		out[e.PlanID] = out[e.PlanID].Add(e.Amount)
	}
	return out
}

func (t *fakeTx) DeleteGovernmentRecords(ctx context.Context, tenantID, periodID string) error {
	kept := t.work.govRecords[:0]
	for _, r := range t.work.govRecords {
		if r.CutoffPeriodID != periodID {
			kept = append(kept, r)
		}
	}
	t.work.govRecords = kept
	return nil
}

func (t *fakeTx) DeleteDeductionEntries(ctx context.Context, tenantID, periodID string) error {
	t.work.dedEntries = deleteEntries(t.work.dedEntries, periodID)
	return nil
}

func (t *fakeTx) DeleteAllowanceEntries(ctx context.Context, tenantID, periodID string) error {
	t.work.allEntries = deleteEntries(t.work.allEntries, periodID)
	return nil
}

func deleteEntries(entries []LedgerEntry, periodID string) []LedgerEntry {
	kept := entries[:0]
	for _, e := range entries {
		if e.CutoffPeriodID != periodID {
			kept = append(kept, e)
		}
	}
	return kept
}

func (t *fakeTx) ClearPostedFlags(ctx context.Context, tenantID, periodID string) error {
	markPosted(t.work.dedLines, nil, false)
	markPosted(t.work.allLines, nil, false)
	return nil
}

const periodID = "sch-1-20240216-20240315"

func seedOneEmployee(state *fakeState) {
	state.periodStatus[periodID] = "approved"
	state.links[periodID] = []EmployeeLink{{ID: "link-1", EmployeeID: "emp-1", SalaryRecordID: "rec-1"}}
	state.dedPlans["loan-1"] = Plan{ID: "loan-1", RemainingBalance: d("500"), TotalApplied: d("100"), IsOpen: true}
	state.allPlans["allow-1"] = Plan{ID: "allow-1", RemainingBalance: d("50"), TotalApplied: d("50"), IsOpen: true}
	state.dedLines["rec-1"] = []SalaryLine{{ID: "dl-1", PlanID: "loan-1", Amount: d("200")}}
	state.allLines["rec-1"] = []SalaryLine{{ID: "al-1", PlanID: "allow-1", Amount: d("25")}}
	state.contributions["rec-1"] = []Contribution{
		{Type: ContributionSSS, Amount: d("100"), EmployeeShare: d("45"), EmployerShare: d("55"), BasisAmount: d("10000")},
		{Type: ContributionPhilHealth, Amount: d("0")},
		{Type: ContributionWithholdingTax, Amount: d("75"), BasisAmount: d("10000")},
	}
}

func TestPostCommitsLedgerEffects(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	seedOneEmployee(store.state)
	svc := NewService(store, metrics.New())

	result, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.ProcessedCount)
	require.Empty(t, result.Errors)

	loan := store.state.dedPlans["loan-1"]
	assert.True(t, loan.RemainingBalance.Equal(d("300")), "loan balance %s", loan.RemainingBalance)
	assert.True(t, loan.TotalApplied.Equal(d("300")), "loan applied %s", loan.TotalApplied)
	assert.True(t, loan.IsOpen)

	allow := store.state.allPlans["allow-1"]
	assert.True(t, allow.RemainingBalance.Equal(d("75")), "allowance balance %s", allow.RemainingBalance)

	require.Len(t, store.state.dedEntries, 1)
	entry := store.state.dedEntries[0]
	assert.True(t, entry.Amount.Equal(d("-200")))
	assert.True(t, entry.BeforeBalance.Equal(d("500")))
	assert.True(t, entry.AfterBalance.Equal(d("300")))
	assert.Equal(t, periodID, entry.CutoffPeriodID)

	// Zero-amount philhealth row must not produce a record.
	require.Len(t, store.state.govRecords, 2)
	var sss GovernmentPaymentRecord
	for _, r := range store.state.govRecords {
		if r.ContributionType == ContributionSSS {
			sss = r
		}
	}
	assert.True(t, sss.EmployeeShare.Equal(d("45")))
	assert.True(t, sss.EmployerShare.Equal(d("55")))

	assert.True(t, store.state.dedLines["rec-1"][0].Posted)
	assert.True(t, store.state.allLines["rec-1"][0].Posted)
}

func TestPostThenReverseRestoresExactState(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	seedOneEmployee(store.state)
	svc := NewService(store, metrics.New())

	_, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)
	require.NoError(t, svc.Reverse(context.Background(), "t1", periodID))

	loan := store.state.dedPlans["loan-1"]
	assert.True(t, loan.RemainingBalance.Equal(d("500")), "loan balance %s", loan.RemainingBalance)
	assert.True(t, loan.TotalApplied.Equal(d("100")), "loan applied %s", loan.TotalApplied)
	assert.True(t, loan.IsOpen)

	allow := store.state.allPlans["allow-1"]
	assert.True(t, allow.RemainingBalance.Equal(d("50")))
	assert.True(t, allow.TotalApplied.Equal(d("50")))

	assert.Empty(t, store.state.dedEntries)
	assert.Empty(t, store.state.allEntries)
	assert.Empty(t, store.state.govRecords)
	assert.False(t, store.state.dedLines["rec-1"][0].Posted)
	assert.False(t, store.state.allLines["rec-1"][0].Posted)
}

func TestPostClosesDrainedPlanAndReverseReopens(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	seedOneEmployee(store.state)
	store.state.dedLines["rec-1"] = []SalaryLine{{ID: "dl-1", PlanID: "loan-1", Amount: d("500")}}
	svc := NewService(store, metrics.New())

	_, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)
	loan := store.state.dedPlans["loan-1"]
	require.True(t, loan.RemainingBalance.IsZero())
	require.False(t, loan.IsOpen)

	require.NoError(t, svc.Reverse(context.Background(), "t1", periodID))
	loan = store.state.dedPlans["loan-1"]
	assert.True(t, loan.RemainingBalance.Equal(d("500")))
	assert.True(t, loan.IsOpen)
}

func TestPostRejectsUnapprovedPeriod(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	seedOneEmployee(store.state)
	store.state.periodStatus[periodID] = "processed"
	svc := NewService(store, metrics.New())

	_, err := svc.Post(context.Background(), "t1", periodID, false)
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestDoublePostRejectedRepostSucceeds(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	seedOneEmployee(store.state)
	svc := NewService(store, metrics.New())

	_, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)
	firstEntries := len(store.state.dedEntries) + len(store.state.allEntries)
	firstRecords := len(store.state.govRecords)

	_, err = svc.Post(context.Background(), "t1", periodID, false)
	require.ErrorIs(t, err, ErrAlreadyPosted)

	require.NoError(t, svc.Reverse(context.Background(), "t1", periodID))
	result, err := svc.Post(context.Background(), "t1", periodID, true)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, firstEntries, len(store.state.dedEntries)+len(store.state.allEntries))
	assert.Equal(t, firstRecords, len(store.state.govRecords))
}

func TestPostIsolatesEmployeeFailures(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	state := store.state
	state.periodStatus[periodID] = "approved"
	state.links[periodID] = []EmployeeLink{
		{ID: "link-a", EmployeeID: "emp-a", SalaryRecordID: "rec-a"},
		{ID: "link-b", EmployeeID: "emp-b", SalaryRecordID: "rec-b"},
	}
	// Employee A references a plan that does not exist.
	state.dedLines["rec-a"] = []SalaryLine{{ID: "dl-a", PlanID: "missing", Amount: d("100")}}
	state.dedPlans["loan-b"] = Plan{ID: "loan-b", RemainingBalance: d("400"), IsOpen: true}
	state.dedLines["rec-b"] = []SalaryLine{{ID: "dl-b", PlanID: "loan-b", Amount: d("100")}}
	svc := NewService(store, metrics.New())

	result, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "emp-a", result.Errors[0].EmployeeID)
	assert.Equal(t, CategoryDeduction, result.Errors[0].Category)
	assert.NotEmpty(t, result.Errors[0].Reason)

	loanB := store.state.dedPlans["loan-b"]
	assert.True(t, loanB.RemainingBalance.Equal(d("300")), "employee B must commit despite A failing")
	assert.False(t, store.state.dedLines["rec-a"][0].Posted)
	assert.True(t, store.state.dedLines["rec-b"][0].Posted)
}

func TestRetryAfterPartialFailureSkipsPostedEmployees(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	state := store.state
	state.periodStatus[periodID] = "approved"
	state.links[periodID] = []EmployeeLink{
		{ID: "link-a", EmployeeID: "emp-a", SalaryRecordID: "rec-a"},
		{ID: "link-b", EmployeeID: "emp-b", SalaryRecordID: "rec-b"},
	}
	state.dedLines["rec-a"] = []SalaryLine{{ID: "dl-a", PlanID: "missing", Amount: d("100")}}
	state.dedPlans["loan-b"] = Plan{ID: "loan-b", RemainingBalance: d("400"), IsOpen: true}
	state.dedLines["rec-b"] = []SalaryLine{{ID: "dl-b", PlanID: "loan-b", Amount: d("100")}}
	svc := NewService(store, metrics.New())

	_, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)

	// Fix employee A's data and repost: B's already-posted line must not be
	// applied a second time.
	store.state.dedPlans["missing"] = Plan{ID: "missing", RemainingBalance: d("300"), IsOpen: true}
	result, err := svc.Post(context.Background(), "t1", periodID, true)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.True(t, store.state.dedPlans["loan-b"].RemainingBalance.Equal(d("300")))
	assert.True(t, store.state.dedPlans["missing"].RemainingBalance.Equal(d("200")))
}

func TestPostRejectsClosedPlan(t *testing.T) {
	store := &fakeLedgerStore{state: newFakeState()}
	seedOneEmployee(store.state)
	plan := store.state.dedPlans["loan-1"]
	plan.IsOpen = false
	store.state.dedPlans["loan-1"] = plan
	svc := NewService(store, metrics.New())

	result, err := svc.Post(context.Background(), "t1", periodID, false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CategoryDeduction, result.Errors[0].Category)
}
