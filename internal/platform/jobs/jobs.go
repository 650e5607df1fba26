package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"payrolld/internal/domain/cutoff"
	"payrolld/internal/domain/schedule"
	"payrolld/internal/platform/config"
)

const (
	JobPeriodSweep   = "period_sweep"
	JobSalaryCompute = "salary_compute"
)

type Service struct {
	DB        *pgxpool.Pool
	Cfg       config.Config
	Schedules *schedule.Service
	Cutoffs   *cutoff.Service
	Computer  cutoff.SalaryComputer
	queue     chan job
}

type job struct {
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, schedules *schedule.Service, cutoffs *cutoff.Service, computer cutoff.SalaryComputer) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		Schedules: schedules,
		Cutoffs:   cutoffs,
		Computer:  computer,
		queue:     make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.PeriodSweepInterval > 0 {
		go s.schedulePeriodSweeps(ctx, s.Cfg.PeriodSweepInterval)
	}
}

func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	_, details, err := s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
	return details, err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (string, any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, j.TenantID, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return runID, details, err
}

// RunPeriodSweep regenerates upcoming periods for every schedule of the
// tenant. Deterministic ids make repeated sweeps free.
func (s *Service) RunPeriodSweep(ctx context.Context, tenantID string) (any, error) {
	return s.RunNow(ctx, JobPeriodSweep, tenantID, func(ctx context.Context) (any, error) {
		return s.Schedules.GenerateAndSyncAll(ctx, tenantID, time.Now().UTC(), s.Cfg.PeriodGenerateCount)
	})
}

// RunSalaryComputation recomputes every employee's salary record for the
// period, then moves the period out of timekeeping carrying the job id.
func (s *Service) RunSalaryComputation(ctx context.Context, tenantID, periodID string) (any, error) {
	j := job{Type: JobSalaryCompute, TenantID: tenantID, Run: func(ctx context.Context) (any, error) {
		linkIDs, err := s.Cutoffs.EmployeeLinkIDs(ctx, tenantID, periodID)
		if err != nil {
			return nil, err
		}
		computed := 0
		for _, linkID := range linkIDs {
			if err := s.Computer.ComputeSalary(ctx, tenantID, linkID); err != nil {
				return map[string]any{"computed": computed}, err
			}
			computed++
		}
		return map[string]any{"computed": computed}, nil
	}}
	runID, details, err := s.runJob(ctx, j)
	if err != nil {
		return details, err
	}
	if err := s.Cutoffs.MarkComputed(ctx, tenantID, periodID, runID); err != nil {
		return details, err
	}
	return details, nil
}

func (s *Service) schedulePeriodSweeps(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tenants, err := s.listTenants(ctx)
			if err != nil {
				slog.Warn("period sweep tenant lookup failed", "err", err)
				continue
			}
			for _, tenantID := range tenants {
				tenantID := tenantID
				s.Enqueue(JobPeriodSweep, tenantID, func(ctx context.Context) (any, error) {
					return s.Schedules.GenerateAndSyncAll(ctx, tenantID, time.Now().UTC(), s.Cfg.PeriodGenerateCount)
				})
			}
		}
	}
}

func (s *Service) listTenants(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM tenants")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}
