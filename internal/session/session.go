// Package session sequences slot resolution, selection, pricing, the wallet
// guard and submission for one booking dialog. Every operation replaces the
// session's State snapshot and publishes an event describing the change.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"courtbook/internal/booking"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/model"
	"courtbook/internal/payment"
	"courtbook/internal/pricing"
	"courtbook/internal/selection"
	"courtbook/internal/slots"

	"github.com/rs/zerolog"
)

// ErrSelectionChanged is returned by EnterPayment when the selection changed
// while the quote and balance were in flight. Their results are discarded.
var ErrSelectionChanged = errors.New("selection changed while pricing")

// State is an immutable snapshot of a booking dialog. Maps held by a State
// are never written after the State is published.
type State struct {
	Date        time.Time
	ResourceIDs []string
	Slots       map[string][]model.ScheduleSlot
	FetchErrors map[string]error

	Selection model.Selection
	Breakdown model.PriceBreakdown

	Balance       *model.WalletBalance
	Affordability payment.Affordability
	Mode          model.PaymentMode
	Decision      payment.Decision

	LastResult *booking.Result
}

// Deps are the collaborators of a Session.
type Deps struct {
	Resolver     *slots.Resolver
	Calculator   *pricing.Calculator
	Quoter       pricing.PriceQuoter
	Wallet       booking.WalletReader
	Orchestrator *booking.Orchestrator
	Bus          *events.Bus
	Now          func() time.Time
}

// Session is one booking dialog.
type Session struct {
	mu        sync.Mutex
	state     State
	resources map[string]*model.Resource
	tracker   slots.RequestTracker
	// quotes is bumped on every selection change; a payment evaluation only
	// lands when its token is still current.
	quotes slots.RequestTracker

	resolver *slots.Resolver
	calc     *pricing.Calculator
	quoter   pricing.PriceQuoter
	wallet   booking.WalletReader
	orch     *booking.Orchestrator
	bus      *events.Bus
	now      func() time.Time
	logger   *zerolog.Logger
}

// New creates a session over the given resources.
func New(deps Deps, resources []model.Resource, logger *zerolog.Logger) *Session {
	if deps.Calculator == nil {
		deps.Calculator = pricing.DefaultCalculator()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Session{
		state: State{
			Selection: model.Selection{},
			Mode:      model.PaymentDeposit,
		},
		resources: indexResources(resources),
		resolver:  deps.Resolver,
		calc:      deps.Calculator,
		quoter:    deps.Quoter,
		wallet:    deps.Wallet,
		orch:      deps.Orchestrator,
		bus:       deps.Bus,
		now:       deps.Now,
		logger:    logger,
	}
}

// Bus returns the event bus the session publishes on.
func (s *Session) Bus() *events.Bus {
	return s.bus
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetCatalog replaces the resource definitions (schedules, promotions).
// Already selected slots keep the price they were selected at.
func (s *Session) SetCatalog(resources []model.Resource) {
	s.mu.Lock()
	s.resources = indexResources(resources)
	s.mu.Unlock()
}

// SetDate switches the booking date, clears the selection and re-resolves slots.
// It returns false when a newer request superseded this one.
func (s *Session) SetDate(ctx context.Context, date time.Time) bool {
	s.mu.Lock()
	st := s.state
	st.Date = date
	st.Selection = model.Selection{}
	st.Breakdown = model.PriceBreakdown{}
	s.quotes.Invalidate()
	s.state = st
	s.mu.Unlock()

	return s.reload(ctx)
}

// SetResources changes the resources shown. Selected slots of removed
// resources are dropped. An empty list cancels in-flight resolutions.
func (s *Session) SetResources(ctx context.Context, ids []string) bool {
	s.mu.Lock()
	st := s.state
	st.ResourceIDs = append([]string(nil), ids...)
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	sel := make(model.Selection, len(st.Selection))
	for id, list := range st.Selection {
		if keep[id] {
			sel[id] = list
		}
	}
	st.Selection = sel
	st.Breakdown = s.calc.Estimate(sel)
	s.quotes.Invalidate()
	s.state = st
	s.mu.Unlock()

	return s.reload(ctx)
}

func (s *Session) reload(ctx context.Context) bool {
	s.mu.Lock()
	date := s.state.Date
	ids := append([]string(nil), s.state.ResourceIDs...)
	if len(ids) == 0 || date.IsZero() {
		s.tracker.Invalidate()
		st := s.state
		st.Slots = nil
		st.FetchErrors = nil
		s.state = st
		s.mu.Unlock()
		s.bus.Publish(events.SlotsResolved, st)
		return true
	}
	token := s.tracker.Begin()
	resources := make([]model.Resource, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.resources[id]; ok {
			resources = append(resources, *r)
		} else {
			resources = append(resources, model.Resource{ID: id})
		}
	}
	s.mu.Unlock()

	res := s.resolver.ResolveResources(ctx, resources, date)

	s.mu.Lock()
	if !s.tracker.IsCurrent(token) {
		s.mu.Unlock()
		metrics.IncStaleResolution()
		s.logger.Debug().Uint64("token", token).Msg("discarding stale slot resolution")
		return false
	}
	st := s.state
	st.Slots = res.Slots
	st.FetchErrors = res.Errors
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.SlotsResolved, st)
	return true
}

// Toggle selects or deselects the resolved slot identified by key.
// Unknown or unavailable slots leave the state unchanged.
func (s *Session) Toggle(key model.SlotKey) bool {
	s.mu.Lock()
	st := s.state
	slot, ok := findSlot(st.Slots[key.ResourceID], key)
	if !ok {
		s.mu.Unlock()
		return false
	}
	sel, changed := selection.Toggle(st.Selection, s.resources[key.ResourceID], slot, s.now())
	if !changed {
		s.mu.Unlock()
		return false
	}
	st.Selection = sel
	st.Breakdown = s.calc.Estimate(sel)
	// the balance is re-fetched on the next EnterPayment
	st.Balance = nil
	st.Affordability = payment.Affordability{}
	st.Decision = payment.Decision{Mode: st.Mode}
	s.quotes.Invalidate()
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.SelectionChanged, st)
	return true
}

// EnterPayment fetches a fresh wallet balance and the authoritative quote,
// then re-evaluates the payment mode. When the quote fails the estimate is
// kept and the error returned; the breakdown stays marked non-authoritative.
// If the selection changes before both calls return, nothing is applied and
// ErrSelectionChanged is returned.
func (s *Session) EnterPayment(ctx context.Context) (State, error) {
	s.mu.Lock()
	st := s.state
	token := s.quotes.Begin()
	s.mu.Unlock()

	var quoteErr error
	breakdown := s.calc.Estimate(st.Selection)
	if s.quoter != nil {
		breakdown, _, quoteErr = s.calc.Quote(ctx, s.quoter, st.Date, st.Selection)
		if quoteErr != nil {
			s.logger.Warn().Err(quoteErr).Msg("authoritative quote unavailable, using estimate")
		}
	}

	balance, err := s.fetchBalance(ctx)
	if err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	if !s.quotes.IsCurrent(token) {
		current := s.state
		s.mu.Unlock()
		s.logger.Debug().Uint64("token", token).Msg("discarding quote for a superseded selection")
		return current, ErrSelectionChanged
	}
	st = s.state
	st.Breakdown = breakdown
	st = s.applyBalance(st, balance)
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.PaymentEvaluated, st)
	return st, quoteErr
}

// RefreshBalance re-fetches the wallet and re-runs the guard.
func (s *Session) RefreshBalance(ctx context.Context) (State, error) {
	balance, err := s.fetchBalance(ctx)
	if err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	st := s.applyBalance(s.state, balance)
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.PaymentEvaluated, st)
	return st, nil
}

// ChooseMode handles the user picking a payment mode.
func (s *Session) ChooseMode(mode model.PaymentMode) payment.Decision {
	s.mu.Lock()
	st := s.state
	d := payment.ChooseMode(st.Mode, mode, st.Affordability)
	st.Mode = d.Mode
	st.Decision = d
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.PaymentEvaluated, st)
	return d
}

// Submit books the current selection. The selection is cleared only when the
// booking is confirmed.
func (s *Session) Submit(ctx context.Context, note string) booking.Result {
	st := s.Snapshot()
	breakdown := st.Breakdown
	res := s.orch.Submit(ctx, booking.SubmitRequest{
		Date:      st.Date,
		Selection: st.Selection,
		Mode:      st.Mode,
		Note:      note,
		Breakdown: &breakdown,
	})

	s.mu.Lock()
	st = s.state
	st.LastResult = &res
	if res.Status == booking.StatusConfirmed {
		st.Selection = model.Selection{}
		st.Breakdown = model.PriceBreakdown{}
		st.Balance = nil
		st.Affordability = payment.Affordability{}
		s.quotes.Invalidate()
	}
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.BookingSubmitted, res)
	return res
}

// RetryPayment retries the payment of the last submit left in payment_pending.
func (s *Session) RetryPayment(ctx context.Context) (booking.Result, error) {
	st := s.Snapshot()
	if st.LastResult == nil || st.LastResult.Status != booking.StatusPaymentPending {
		return booking.Result{}, fmt.Errorf("no booking awaiting payment")
	}
	last := st.LastResult
	res := s.orch.RetryPayment(ctx, last.BookingID, last.Mode, last.Amount)

	s.mu.Lock()
	st = s.state
	st.LastResult = &res
	if res.Status == booking.StatusConfirmed {
		st.Selection = model.Selection{}
		st.Breakdown = model.PriceBreakdown{}
		s.quotes.Invalidate()
	}
	s.state = st
	s.mu.Unlock()

	s.bus.Publish(events.BookingSubmitted, res)
	return res, nil
}

// Close discards the selection, price and balance and cancels in-flight fetches.
func (s *Session) Close() {
	s.mu.Lock()
	s.tracker.Invalidate()
	s.quotes.Invalidate()
	s.state = State{Selection: model.Selection{}, Mode: model.PaymentDeposit}
	st := s.state
	s.mu.Unlock()

	s.bus.Publish(events.SessionClosed, st)
}

func (s *Session) fetchBalance(ctx context.Context) (*model.WalletBalance, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet reader not configured")
	}
	balance, err := s.wallet.GetWalletBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch wallet balance: %w", err)
	}
	if balance == nil {
		return nil, fmt.Errorf("fetch wallet balance: empty response")
	}
	b := *balance
	if b.FetchedAt.IsZero() {
		b.FetchedAt = s.now()
	}
	return &b, nil
}

func (s *Session) applyBalance(st State, balance *model.WalletBalance) State {
	st.Balance = balance
	st.Affordability = payment.Evaluate(*balance, st.Breakdown)
	st.Decision = payment.Reconcile(st.Mode, st.Affordability)
	st.Mode = st.Decision.Mode
	if st.Decision.Notice != payment.NoticeNone {
		s.logger.Info().Str("mode", string(st.Mode)).Msg(string(st.Decision.Notice))
	}
	return st
}

func indexResources(resources []model.Resource) map[string]*model.Resource {
	byID := make(map[string]*model.Resource, len(resources))
	for i := range resources {
		r := resources[i]
		byID[r.ID] = &r
	}
	return byID
}

func findSlot(list []model.ScheduleSlot, key model.SlotKey) (model.ScheduleSlot, bool) {
	for _, s := range list {
		if s.Key() == key {
			return s, true
		}
	}
	return model.ScheduleSlot{}, false
}
