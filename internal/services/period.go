package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"financetracker/internal/cache"
	"financetracker/internal/core"
	applog "financetracker/internal/log"
	"financetracker/internal/storage"
)

// PeriodResolver maps a date to its calendar-month period, creating the
// period on first use.
type PeriodResolver struct {
	periods *storage.Manager[core.Period]
	cache   cache.Cache[string, core.Period]
	group   singleflight.Group
	logger  *applog.Logger
}

// NewPeriodResolver creates a resolver. A nil cache disables memoisation.
func NewPeriodResolver(periods *storage.Manager[core.Period], c cache.Cache[string, core.Period], logger *applog.Logger) *PeriodResolver {
	if c == nil {
		c = cache.Nop[string, core.Period]{}
	}
	return &PeriodResolver{
		periods: periods,
		cache:   c,
		logger:  logger.WithComponent(applog.ComponentPeriod),
	}
}

// Resolve returns the period containing target.
func (r *PeriodResolver) Resolve(ctx context.Context, target time.Time) (core.Period, error) {
	if target.IsZero() {
		return core.Period{}, core.NewValidationError(core.KindPeriod, core.FieldPeriodStart, "date cannot be zero")
	}
	return r.ResolveStart(ctx, core.MonthStart(target))
}

// ResolveStart returns the period beginning on start, which must be the
// first day of a month.
func (r *PeriodResolver) ResolveStart(ctx context.Context, start time.Time) (core.Period, error) {
	bounds, err := core.BoundsFromStart(start)
	if err != nil {
		return core.Period{}, err
	}

	if p, ok := r.cache.Get(bounds.Code); ok {
		return p, nil
	}

	v, err, _ := r.group.Do(bounds.Code, func() (any, error) {
		p, _, err := r.findOrCreate(ctx, nil, bounds)
		return p, err
	})
	if err != nil {
		return core.Period{}, err
	}

	p := v.(core.Period)
	r.cache.Set(bounds.Code, p)
	return p, nil
}

// ResolveIn is Resolve inside tx, so a period it creates rolls back with
// the rest of tx. Such a period is memoised only once a later lookup finds
// it committed.
func (r *PeriodResolver) ResolveIn(ctx context.Context, tx *storage.Tx, target time.Time) (core.Period, error) {
	if target.IsZero() {
		return core.Period{}, core.NewValidationError(core.KindPeriod, core.FieldPeriodStart, "date cannot be zero")
	}
	bounds, err := core.BoundsFromStart(core.MonthStart(target))
	if err != nil {
		return core.Period{}, err
	}

	if p, ok := r.cache.Get(bounds.Code); ok {
		return p, nil
	}

	p, created, err := r.findOrCreate(ctx, tx, bounds)
	if err != nil {
		return core.Period{}, err
	}
	if !created {
		r.cache.Set(bounds.Code, p)
	}
	return p, nil
}

// Invalidate drops memoised periods after periods were edited directly.
func (r *PeriodResolver) Invalidate() {
	r.cache.Purge()
}

func (r *PeriodResolver) findOrCreate(ctx context.Context, tx *storage.Tx, b core.PeriodBounds) (core.Period, bool, error) {
	filter := core.Fields{core.FieldPeriodStart: b.Start.Format(core.DateLayout)}

	existing, err := r.periods.FindOneIn(ctx, tx, filter)
	if err != nil {
		return core.Period{}, false, fmt.Errorf("find period %s: %w", b.Code, err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	created, err := r.periods.CreateIn(ctx, tx, filter)
	if errors.Is(err, core.ErrDuplicate) {
		// Another writer created it between our lookup and insert.
		existing, ferr := r.periods.FindOneIn(ctx, tx, filter)
		if ferr != nil {
			return core.Period{}, false, fmt.Errorf("refetch period %s: %w", b.Code, ferr)
		}
		if existing != nil {
			return *existing, false, nil
		}
	}
	if err != nil {
		return core.Period{}, false, fmt.Errorf("create period %s: %w", b.Code, err)
	}

	r.logger.InfoContext(ctx, "Period created",
		applog.FieldPeriodCode, created.Code,
		applog.FieldEntityID, created.ID)
	return created, true, nil
}
