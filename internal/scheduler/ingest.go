package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kjannette/npt-backend/internal/ingest"
	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/repository"
)

// Runner is the part of ingest.Driver the scheduler needs.
type Runner interface {
	Run(ctx context.Context, req ingest.Request) (models.IngestSummary, error)
}

type IngestSchedulerConfig struct {
	Interval   time.Duration // e.g. 1*time.Hour
	Timeout    time.Duration // per run
	Zones      []models.Zone
	SaveBronze bool
	Now        func() time.Time
	OnRun      func(sum models.IngestSummary, err error)
}

// IngestScheduler re-ingests today's and tomorrow's Oslo prices on every
// tick. Day-ahead prices appear early afternoon, so tomorrow fails with a
// 404 until then; today is written first and stays committed.
type IngestScheduler struct {
	runner Runner
	cfg    IngestSchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
	last    *models.IngestSummary
}

func NewIngestScheduler(runner Runner, cfg IngestSchedulerConfig) *IngestScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if len(cfg.Zones) == 0 {
		cfg.Zones = models.AllZones
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &IngestScheduler{runner: runner, cfg: cfg}
}

func (s *IngestScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		fmt.Println("[SCHEDULER] Already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		s.tick()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()

	fmt.Printf("[SCHEDULER] Started (every %s, zones %v)\n", s.cfg.Interval, s.cfg.Zones)
}

// Stop halts the ticker and waits for an in-flight run to finish.
func (s *IngestScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	fmt.Println("[SCHEDULER] Stopped")
}

func (s *IngestScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastSuccess returns the most recent successful run, or nil.
func (s *IngestScheduler) LastSuccess() *models.IngestSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// RunNow triggers a run outside the normal schedule.
func (s *IngestScheduler) RunNow(ctx context.Context) (models.IngestSummary, error) {
	fmt.Println("[SCHEDULER] Manual ingestion triggered")
	return s.run(ctx)
}

func (s *IngestScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if _, err := s.run(ctx); err != nil {
		fmt.Printf("[SCHEDULER] Ingestion failed: %v\n", err)
	}
}

func (s *IngestScheduler) run(ctx context.Context) (models.IngestSummary, error) {
	today, _ := ingest.ParseDate(repository.OsloDay(s.cfg.Now()))
	req := ingest.Request{
		Start:      today,
		End:        today.AddDate(0, 0, 1),
		Zones:      s.cfg.Zones,
		SaveBronze: s.cfg.SaveBronze,
	}

	sum, err := s.runner.Run(ctx, req)
	if err == nil {
		s.mu.Lock()
		s.last = &sum
		s.mu.Unlock()
	}
	if s.cfg.OnRun != nil {
		s.cfg.OnRun(sum, err)
	}
	return sum, err
}
