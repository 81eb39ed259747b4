package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that some catalog sources fail.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds every individual check.
const DefaultCheckTimeout = 5 * time.Second

// Report aggregates health check results. Source checks are keyed "source:<id>".
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db      DBPinger
	sources SourceChecker
	timeout time.Duration
}

// New creates a Service. sources can be nil.
func New(db DBPinger, sources SourceChecker) *Service {
	return &Service{db: db, sources: sources, timeout: DefaultCheckTimeout}
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs health checks against the database and every catalog source.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	dbCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.db.Ping(dbCtx)
	cancel()
	if err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.sources == nil {
		return Report{Status: status, Checks: checks}
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, id := range s.sources.Sources() {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := CheckOK
			if err := s.sources.Test(pctx, id); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks["source:"+id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if status == Healthy {
		for _, v := range checks {
			if v == CheckError {
				status = Degraded
				break
			}
		}
	}
	return Report{Status: status, Checks: checks}
}
