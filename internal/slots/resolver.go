package slots

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// AvailabilityFetcher fetches the raw schedule of one resource.
type AvailabilityFetcher interface {
	GetAvailability(ctx context.Context, resourceID string, from, to time.Time) (*model.AvailabilityResponse, error)
}

// AvailabilityFetchError reports a failed fetch for a single resource.
type AvailabilityFetchError struct {
	ResourceID string
	Err        error
}

func (e *AvailabilityFetchError) Error() string {
	return fmt.Sprintf("fetch availability for %s: %v", e.ResourceID, e.Err)
}

func (e *AvailabilityFetchError) Unwrap() error {
	return e.Err
}

// Resolution is the outcome of resolving slots for a date.
// A resource whose fetch failed has an entry in Errors and none in Slots.
type Resolution struct {
	Date   time.Time
	Slots  map[string][]model.ScheduleSlot
	Errors map[string]error
}

// Failed reports whether any resource fetch failed.
func (r *Resolution) Failed() bool {
	return len(r.Errors) > 0
}

// Options configures a Resolver.
type Options struct {
	// Location decides what "today" means. Default: time.Local.
	Location *time.Location
	// MaxParallel bounds concurrent fetches. Default: 8.
	MaxParallel int
	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Resolver builds the bookable slots per resource for a date.
type Resolver struct {
	fetcher     AvailabilityFetcher
	loc         *time.Location
	maxParallel int
	now         func() time.Time
	logger      *zerolog.Logger
}

// NewResolver creates a new slot resolver.
func NewResolver(fetcher AvailabilityFetcher, opts Options, logger *zerolog.Logger) *Resolver {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Resolver{
		fetcher:     fetcher,
		loc:         opts.Location,
		maxParallel: opts.MaxParallel,
		now:         opts.Now,
		logger:      logger,
	}
}

// Resolve fetches every resource in parallel and waits for all of them.
// One failing resource does not abort the others.
func (r *Resolver) Resolve(ctx context.Context, resourceIDs []string, date time.Time) *Resolution {
	started := time.Now()
	day := model.StartOfDay(date, r.loc)
	res := &Resolution{
		Date:   day,
		Slots:  make(map[string][]model.ScheduleSlot, len(resourceIDs)),
		Errors: make(map[string]error),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.maxParallel)

	for _, id := range dedupe(resourceIDs) {
		id := id
		g.Go(func() error {
			resp, err := r.fetcher.GetAvailability(ctx, id, day, model.EndOfDay(day, r.loc))
			if err == nil && resp == nil {
				err = fmt.Errorf("empty availability response")
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.IncAvailabilityFetch("error")
				r.logger.Warn().Err(err).Str("resource_id", id).Time("date", day).Msg("availability fetch failed")
				res.Errors[id] = &AvailabilityFetchError{ResourceID: id, Err: err}
				return nil
			}
			metrics.IncAvailabilityFetch("ok")

			slots, dropped := Build(id, day, resp, r.now(), r.loc)
			if dropped > 0 {
				r.logger.Warn().Str("resource_id", id).Int("dropped", dropped).Msg("dropped slots with invalid times")
			}
			res.Slots[id] = slots
			return nil
		})
	}
	_ = g.Wait()

	metrics.ObserveResolve(time.Since(started).Seconds())
	return res
}

// ResolveResources is Resolve with the weekly schedule definition applied:
// resources closed on the date's weekday get an empty slot list without a fetch.
func (r *Resolver) ResolveResources(ctx context.Context, resources []model.Resource, date time.Time) *Resolution {
	day := model.StartOfDay(date, r.loc)
	var open []string
	closed := make([]string, 0)
	for i := range resources {
		if resources[i].OpenOn(day) {
			open = append(open, resources[i].ID)
		} else {
			closed = append(closed, resources[i].ID)
		}
	}

	res := r.Resolve(ctx, open, day)
	for _, id := range closed {
		res.Slots[id] = []model.ScheduleSlot{}
	}
	return res
}

// Build converts a raw availability response into slots for date.
// Schedule dates may carry a time part ("2026-03-10T00:00:00Z"); only the
// calendar date is compared. It returns the slots sorted by start time and the
// number of entries dropped because their date or times could not be parsed.
func Build(resourceID string, date time.Time, resp *model.AvailabilityResponse, now time.Time, loc *time.Location) ([]model.ScheduleSlot, int) {
	if resp == nil {
		return nil, 0
	}
	if loc == nil {
		loc = time.Local
	}
	day := model.StartOfDay(date, loc)
	dayStr := day.Format(model.DateLayout)
	isToday := model.SameDay(day, now, loc)
	nowLocal := now.In(loc)
	nowMinutes := nowLocal.Hour()*60 + nowLocal.Minute()

	result := make([]model.ScheduleSlot, 0)
	dropped := 0
	for _, ds := range resp.Schedule {
		if ds.Date != "" {
			d, ok := scheduleDate(ds.Date)
			if !ok {
				dropped += len(ds.TimeSlots)
				continue
			}
			if d != dayStr {
				continue
			}
		}
		for _, raw := range ds.TimeSlots {
			startMin, err := model.ClockMinutes(raw.StartTime)
			if err != nil {
				dropped++
				continue
			}
			if _, err := model.ClockMinutes(raw.EndTime); err != nil {
				dropped++
				continue
			}

			start := model.FormatClock(raw.StartTime)
			end := model.FormatClock(raw.EndTime)
			isPast := isToday && startMin <= nowMinutes

			result = append(result, model.ScheduleSlot{
				ResourceID:    resourceID,
				Date:          day,
				StartTime:     start,
				EndTime:       end,
				Status:        raw.Status,
				Price:         raw.Price,
				OriginalPrice: raw.Price,
				IsPastSlot:    isPast,
				IsAvailable:   raw.Status == model.StatusAvailable && !isPast,
				DisplayTime:   start + " - " + end,
			})
		}
	}

	SortByStart(result)
	return result, dropped
}

// scheduleDate returns the YYYY-MM-DD prefix of a schedule date.
func scheduleDate(s string) (string, bool) {
	if len(s) < len(model.DateLayout) {
		return "", false
	}
	prefix := s[:len(model.DateLayout)]
	if _, err := time.Parse(model.DateLayout, prefix); err != nil {
		return "", false
	}
	return prefix, true
}

// SortByStart sorts slots ascending by start time in place.
func SortByStart(slots []model.ScheduleSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartMinutes() < slots[j].StartMinutes()
	})
}

// AvailableOnly returns only bookable slots.
func AvailableOnly(slots []model.ScheduleSlot) []model.ScheduleSlot {
	var available []model.ScheduleSlot
	for _, s := range slots {
		if s.IsAvailable {
			available = append(available, s)
		}
	}
	return available
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
