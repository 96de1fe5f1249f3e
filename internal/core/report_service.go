package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"clockreport.service/internal/core/model"
	"clockreport.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	// CurrentWindow is how far back a clock-in still counts as "logged in".
	// It is deliberately shorter than StaleThreshold.
	CurrentWindow = 15 * time.Hour
	CurrentLimit  = 20

	// StaleThreshold is the age after which an open clock-in is reported as stale.
	StaleThreshold = 24 * time.Hour
	StaleLimit     = 30

	RecentClockOutLimit = 10
)

// StaleFloor is the installation date of the time clock. Older open
// clock-ins are never reported.
var StaleFloor = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

type ReportService struct {
	store repository.EventStore
	keys  model.MetaKeys
	cb    *gobreaker.CircuitBreaker
	now   func() time.Time
}

// NewReportService creates the report service on top of an event store.
// Every store call goes through a circuit breaker so a struggling database
// fails the affected sections fast instead of stalling each page view.
func NewReportService(store repository.EventStore, keys model.MetaKeys) *ReportService {
	settings := gobreaker.Settings{
		Name:        "event-store",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: storeHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}

	return &ReportService{
		store: store,
		keys:  keys,
		cb:    gobreaker.NewCircuitBreaker(settings),
		now:   time.Now,
	}
}

// CurrentlyClockedIn lists open clock-ins from the last CurrentWindow.
func (s *ReportService) CurrentlyClockedIn(ctx context.Context, now time.Time) ([]model.ReportEntry, error) {
	window := model.Window{From: now.Add(-CurrentWindow).Unix()}
	return s.openEntries(ctx, window, CurrentLimit)
}

// StaleClockIns lists open clock-ins older than StaleThreshold but not older
// than StaleFloor.
func (s *ReportService) StaleClockIns(ctx context.Context, now time.Time) ([]model.ReportEntry, error) {
	window := model.Window{From: StaleFloor.Unix(), Until: now.Add(-StaleThreshold).Unix()}
	if window.Validate() != nil {
		// now is too close to the floor for anything to be stale yet
		return nil, nil
	}
	return s.openEntries(ctx, window, StaleLimit)
}

// RecentClockOuts lists the latest clock-outs. A clock-out whose value has no
// numeric epoch is kept without a timestamp and sorted last.
func (s *ReportService) RecentClockOuts(ctx context.Context) ([]model.ReportEntry, error) {
	events, err := execute(s.cb, func() ([]model.ClockEvent, error) {
		return s.store.FindClosedEvents(ctx, RecentClockOutLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query recent clock-outs: %w", err)
	}

	entries := make([]model.ReportEntry, 0, len(events))
	for _, e := range events {
		out, ok := e.ClockOut()
		if !ok {
			continue
		}
		if !out.Valid {
			log.Ctx(ctx).Debug().Int64("event_id", e.ID).Str("key", out.Key).Msg("Clock-out value has no epoch")
		}
		entries = append(entries, model.ReportEntry{
			EventID:      e.ID,
			UserRef:      e.UserRef,
			Timestamp:    out.Timestamp,
			HasTimestamp: out.Valid,
			Extra:        out.Extra,
		})
	}

	return newestFirst(entries, RecentClockOutLimit), nil
}

// ResolveDisplayName maps a user reference to the stored display name. It
// never fails: on any miss the reference itself is returned.
func (s *ReportService) ResolveDisplayName(ctx context.Context, userRef string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(userRef), 10, 64)
	if err != nil {
		return userRef
	}

	name, err := execute(s.cb, func() (string, error) {
		value, _, err := s.store.GetAttribute(ctx, id, s.keys.Name)
		return value, err
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_ref", userRef).Msg("Display name lookup failed, using user reference")
		return userRef
	}
	if strings.TrimSpace(name) == "" {
		return userRef
	}
	return name
}

func (s *ReportService) openEntries(ctx context.Context, window model.Window, limit int) ([]model.ReportEntry, error) {
	events, err := execute(s.cb, func() ([]model.ClockEvent, error) {
		return s.store.FindOpenEvents(ctx, window, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query open clock-ins: %w", err)
	}

	entries := make([]model.ReportEntry, 0, len(events))
	for _, e := range events {
		in, ok := e.ClockIn()
		if !ok || !in.Valid || !e.IsOpen() || !window.Contains(in.Timestamp) {
			continue
		}
		entries = append(entries, model.ReportEntry{
			EventID:      e.ID,
			UserRef:      e.UserRef,
			Timestamp:    in.Timestamp,
			HasTimestamp: true,
		})
	}

	return newestFirst(entries, limit), nil
}

// newestFirst sorts by timestamp descending, entries without a timestamp
// last, ties broken by the higher event id, and caps the result.
func newestFirst(entries []model.ReportEntry, limit int) []model.ReportEntry {
	slices.SortStableFunc(entries, func(a, b model.ReportEntry) int {
		if a.HasTimestamp != b.HasTimestamp {
			if a.HasTimestamp {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.EventID, a.EventID)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// storeHealthy tells the breaker whether err says anything about the store.
// A caller that went away or ran out of time is not a store failure.
func storeHealthy(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// execute runs fn through the breaker, keeping the result typed.
func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("event store unavailable: %w", err)
		}
		return zero, err
	}
	return res.(T), nil
}
