package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/booking"
	"courtbook/internal/model"
	"courtbook/internal/pricing"
	"courtbook/internal/session"
	"courtbook/internal/slots"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePicks(t *testing.T) {
	picks, err := parsePicks(" court-1@9:00 , coach-2@18:30:00,")
	require.NoError(t, err)
	assert.Equal(t, []pick{{resourceID: "court-1", start: "09:00"}, {resourceID: "coach-2", start: "18:30"}}, picks)

	for _, bad := range []string{"court-1", "@09:00", "court-1@noon"} {
		_, err := parsePicks(bad)
		assert.Error(t, err, bad)
	}

	picks, err = parsePicks("")
	require.NoError(t, err)
	assert.Empty(t, picks)
}

func TestFindPick(t *testing.T) {
	list := []model.ScheduleSlot{
		{ResourceID: "R", StartTime: "09:00", EndTime: "10:00"},
		{ResourceID: "R", StartTime: "10:00", EndTime: "11:00"},
	}
	key, ok := findPick(list, "10:00")
	require.True(t, ok)
	assert.Equal(t, model.SlotKey{ResourceID: "R", StartTime: "10:00", EndTime: "11:00"}, key)

	_, ok = findPick(list, "12:00")
	assert.False(t, ok)
}

func TestPrintSlots(t *testing.T) {
	var buf bytes.Buffer
	printSlots(&buf, session.State{
		ResourceIDs: []string{"R", "S"},
		Slots: map[string][]model.ScheduleSlot{"R": {{
			DisplayTime: "09:00 - 10:00", Price: 80, OriginalPrice: 100, PromotionName: "Morning", IsAvailable: true,
		}}},
		FetchErrors: map[string]error{"S": errors.New("timeout")},
	})
	assert.Equal(t, "R: 1 slots\n  + 09:00 - 10:00 80.00 (Morning, was 100.00)\nS: unavailable (timeout)\n", buf.String())
}

var bookDate = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

// courtAPI serves one court with a single open 09:00 slot. The wallet covers
// the deposit but not the full price.
type courtAPI struct {
	bookings atomic.Int32
	payments atomic.Int32
}

func (a *courtAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/resources/R/availability":
		_ = json.NewEncoder(w).Encode(model.AvailabilityResponse{Schedule: []model.DaySchedule{{
			Date:      bookDate.Format(model.DateLayout),
			TimeSlots: []model.RawTimeSlot{{StartTime: "09:00", EndTime: "10:00", Status: model.StatusAvailable, Price: 100000}},
		}}})
	case "/api/v1/bookings/price":
		_ = json.NewEncoder(w).Encode(model.PriceDetails{TotalPrice: 110000, MinimumDeposit: 30000})
	case "/api/v1/wallet/balance":
		_ = json.NewEncoder(w).Encode(map[string]float64{"balance": 50000})
	case "/api/v1/bookings":
		a.bookings.Add(1)
		_ = json.NewEncoder(w).Encode(model.BookingResponse{ID: "B1", Status: "CONFIRMED"})
	case "/api/v1/payments":
		a.payments.Add(1)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newBookingSession(t *testing.T, backend *courtAPI) *session.Session {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	now := func() time.Time { return bookDate.Add(-24 * time.Hour) }
	client := api.NewClient(srv.URL, "").WithLogger(&logger)
	calc := pricing.DefaultCalculator()
	return session.New(session.Deps{
		Resolver:     slots.NewResolver(client, slots.Options{Location: time.UTC, Now: now}, &logger),
		Calculator:   calc,
		Quoter:       client,
		Wallet:       client,
		Orchestrator: booking.NewOrchestrator(client, booking.Config{Calculator: calc}, &logger),
		Now:          now,
	}, []model.Resource{{ID: "R", Kind: model.KindCourt, Name: "Court R"}}, &logger)
}

func TestBook_BlockedFullModeDoesNotSubmit(t *testing.T) {
	backend := &courtAPI{}
	sess := newBookingSession(t, backend)
	logger := zerolog.Nop()

	var out bytes.Buffer
	opts := options{picks: "R@09:00", mode: string(model.PaymentFull), book: true}
	err := book(context.Background(), sess, opts, bookDate, []string{"R"}, &out, &logger)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "full_unaffordable")
	assert.Contains(t, out.String(), "blocked: full_unaffordable")
	assert.NotContains(t, out.String(), "booking:")
	assert.Zero(t, backend.bookings.Load())
	assert.Zero(t, backend.payments.Load())
}

func TestBook_BlockedModeWithoutSubmitOnlyReports(t *testing.T) {
	backend := &courtAPI{}
	sess := newBookingSession(t, backend)
	logger := zerolog.Nop()

	var out bytes.Buffer
	opts := options{picks: "R@09:00", mode: string(model.PaymentFull)}
	require.NoError(t, book(context.Background(), sess, opts, bookDate, []string{"R"}, &out, &logger))
	assert.Contains(t, out.String(), "blocked: full_unaffordable")
	assert.Zero(t, backend.bookings.Load())
}

func TestBook_DepositModeConfirms(t *testing.T) {
	backend := &courtAPI{}
	sess := newBookingSession(t, backend)
	logger := zerolog.Nop()

	var out bytes.Buffer
	opts := options{picks: "R@09:00", mode: string(model.PaymentDeposit), book: true}
	require.NoError(t, book(context.Background(), sess, opts, bookDate, []string{"R"}, &out, &logger))

	assert.Contains(t, out.String(), "R: 1 slots")
	assert.Contains(t, out.String(), "(server)")
	assert.Contains(t, out.String(), "booking: confirmed id=B1")
	assert.NotContains(t, out.String(), "blocked:")
	assert.Equal(t, int32(1), backend.bookings.Load())
	assert.Equal(t, int32(1), backend.payments.Load())
}
