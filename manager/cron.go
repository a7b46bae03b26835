package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/robfig/cron/v3"
)

const defaultCronCheckInterval = time.Minute

// Expressions have five fields: minute, hour, day of month, month and day
// of week.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule triggers prediction of one competition on a cron expression,
// typically the weekly round of a tournament. Timezone is an IANA name and
// defaults to UTC.
type Schedule struct {
	Expression  string
	Timezone    string
	Competition string
	Config      modelfactory.Config
}

// parse checks the expression and timezone of s.
func (s Schedule) parse() (cron.Schedule, *time.Location, error) {
	if s.Expression == "" {
		return nil, nil, modelfactory.MissingParam("cron expression")
	}
	spec, err := cronParser.Parse(s.Expression)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: cron expression %q: %w", pkgerrors.ErrConfiguration, s.Expression, err)
	}
	loc := time.UTC
	if s.Timezone != "" {
		if loc, err = time.LoadLocation(s.Timezone); err != nil {
			return nil, nil, fmt.Errorf("%w: timezone %q: %w", pkgerrors.ErrConfiguration, s.Timezone, err)
		}
	}

	return spec, loc, nil
}

// CronScheduler runs scheduled predictions.
type CronScheduler interface {
	Start(ctx context.Context) error
	Stop()
	NextRun() time.Time
}

type cronScheduler struct {
	service       Service
	schedule      Schedule
	spec          cron.Schedule
	loc           *time.Location
	logger        *slog.Logger
	checkInterval time.Duration
	now           func() time.Time

	mu       sync.Mutex
	nextRun  time.Time
	stopOnce sync.Once
	stopChan chan struct{}
}

func NewCronScheduler(service Service, schedule Schedule, checkInterval time.Duration, logger *slog.Logger) (CronScheduler, error) {
	spec, loc, err := schedule.parse()
	if err != nil {
		return nil, err
	}
	if schedule.Competition == "" {
		return nil, modelfactory.MissingParam("competition")
	}
	if checkInterval <= 0 {
		checkInterval = defaultCronCheckInterval
	}

	return &cronScheduler{
		service:       service,
		schedule:      schedule,
		spec:          spec,
		loc:           loc,
		logger:        logger,
		checkInterval: checkInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}, nil
}

func (cs *cronScheduler) Start(ctx context.Context) error {
	cs.setNextRun(cs.spec.Next(cs.now().In(cs.loc)))

	ticker := time.NewTicker(cs.checkInterval)
	defer ticker.Stop()

	cs.logger.Info("cron scheduler started",
		slog.String("competition", cs.schedule.Competition),
		slog.String("schedule", cs.schedule.Expression),
		slog.Time("next_run", cs.NextRun()),
	)

	for {
		select {
		case <-ctx.Done():
			cs.logger.Info("cron scheduler stopping")

			return ctx.Err()
		case <-cs.stopChan:
			cs.logger.Info("cron scheduler stopped")

			return nil
		case <-ticker.C:
			cs.processSchedule(ctx)
		}
	}
}

func (cs *cronScheduler) Stop() {
	cs.stopOnce.Do(func() {
		close(cs.stopChan)
	})
}

func (cs *cronScheduler) NextRun() time.Time {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.nextRun
}

func (cs *cronScheduler) setNextRun(t time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.nextRun = t
}

func (cs *cronScheduler) processSchedule(ctx context.Context) {
	now := cs.now()
	if next := cs.NextRun(); next.IsZero() || now.Before(next) {
		return
	}

	p, err := cs.service.Predict(ctx, cs.schedule.Competition, cs.schedule.Config)
	if err != nil {
		cs.logger.Error("failed to trigger scheduled prediction",
			slog.String("competition", cs.schedule.Competition),
			slog.String("error", err.Error()))
	} else {
		cs.logger.Info("scheduled prediction completed",
			slog.String("competition", cs.schedule.Competition),
			slog.String("run_id", p.Run.ID))
	}

	cs.setNextRun(cs.spec.Next(now.In(cs.loc)))
}
