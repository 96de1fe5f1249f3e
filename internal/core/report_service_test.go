package core

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
	"time"

	"clockreport.service/internal/core/model"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = model.NewMetaKeys(model.DefaultNamespace)

// memStore answers queries the way the SQL adapter does, over in-memory events.
type memStore struct {
	events []model.ClockEvent
	names  map[int64]string

	findOpenErr   func(window model.Window) error
	findClosedErr error
	attrErr       error
	calls         int
}

func (m *memStore) FindOpenEvents(ctx context.Context, window model.Window, limit int) ([]model.ClockEvent, error) {
	m.calls++
	if m.findOpenErr != nil {
		if err := m.findOpenErr(window); err != nil {
			return nil, err
		}
	}

	var out []model.ClockEvent
	for _, e := range m.events {
		in, ok := e.ClockIn()
		if !ok || !in.Valid || !e.IsOpen() || !window.Contains(in.Timestamp) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b model.ClockEvent) int {
		ai, _ := a.ClockIn()
		bi, _ := b.ClockIn()
		return int(bi.Timestamp - ai.Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FindClosedEvents(ctx context.Context, limit int) ([]model.ClockEvent, error) {
	m.calls++
	if m.findClosedErr != nil {
		return nil, m.findClosedErr
	}

	var out []model.ClockEvent
	for _, e := range m.events {
		if _, ok := e.ClockOut(); ok {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetAttribute(ctx context.Context, eventID int64, key string) (string, bool, error) {
	m.calls++
	if m.attrErr != nil {
		return "", false, m.attrErr
	}
	if key != testKeys.Name {
		return "", false, nil
	}
	name, ok := m.names[eventID]
	return name, ok, nil
}

func event(id int64, userRef string, meta ...string) model.ClockEvent {
	e := model.ClockEvent{ID: id, UserRef: userRef}
	for i := 0; i+1 < len(meta); i += 2 {
		if a, ok := testKeys.Parse(meta[i], meta[i+1]); ok {
			e.Attributes = append(e.Attributes, a)
		}
	}
	return e
}

func epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func ids(entries []model.ReportEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.EventID)
	}
	return out
}

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestService(store *memStore) *ReportService {
	svc := NewReportService(store, testKeys)
	svc.now = func() time.Time { return testNow }
	return svc
}

func fixtureStore() *memStore {
	return &memStore{
		events: []model.ClockEvent{
			// A: in ten hours ago, still open
			event(1, "101", "etimeclockwp-in_07", epoch(testNow.Add(-10*time.Hour))),
			// B: in thirty hours ago, never closed
			event(2, "102", "etimeclockwp-in_01", epoch(testNow.Add(-30*time.Hour))),
			// between the two windows
			event(3, "103", "etimeclockwp-in_01", epoch(testNow.Add(-20*time.Hour))),
			// before the fixed floor
			event(4, "104", "etimeclockwp-in_01", epoch(time.Date(2024, time.May, 20, 8, 0, 0, 0, time.UTC))),
			// closed shift
			event(5, "105",
				"etimeclockwp-in_05", epoch(testNow.Add(-2*time.Hour)),
				"etimeclockwp-out_05", "1700000000|extra"),
			// D: malformed clock-out
			event(6, "106", "etimeclockwp-out_09", "notanumber"),
		},
		names: map[int64]string{101: "Ana Pop", 105: "Dan Ionescu"},
	}
}

func TestReportService_CurrentlyClockedIn(t *testing.T) {
	svc := newTestService(fixtureStore())

	entries, err := svc.CurrentlyClockedIn(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, ids(entries))
	assert.Equal(t, testNow.Add(-10*time.Hour).Unix(), entries[0].Timestamp)
	assert.Equal(t, "101", entries[0].UserRef)
}

func TestReportService_StaleClockIns(t *testing.T) {
	svc := newTestService(fixtureStore())

	entries, err := svc.StaleClockIns(context.Background(), testNow)
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, ids(entries))
}

func TestReportService_StaleClockIns_OrderedAndCapped(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 40; i++ {
		ts := testNow.Add(-25*time.Hour - time.Duration(i)*time.Hour)
		store.events = append(store.events, event(int64(100+i), strconv.Itoa(i), "etimeclockwp-in_01", epoch(ts)))
	}
	svc := newTestService(store)

	entries, err := svc.StaleClockIns(context.Background(), testNow)
	require.NoError(t, err)
	require.Len(t, entries, StaleLimit)

	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i-1].Timestamp, entries[i].Timestamp)
	}
	assert.Equal(t, int64(100), entries[0].EventID)
}

func TestReportService_StaleClockIns_BeforeFloor(t *testing.T) {
	store := fixtureStore()
	svc := newTestService(store)

	entries, err := svc.StaleClockIns(context.Background(), StaleFloor.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, store.calls)
}

func TestReportService_CurrentlyClockedIn_Capped(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 25; i++ {
		ts := testNow.Add(-time.Duration(i) * time.Minute)
		store.events = append(store.events, event(int64(i+1), strconv.Itoa(i), "etimeclockwp-in_01", epoch(ts)))
	}
	svc := newTestService(store)

	entries, err := svc.CurrentlyClockedIn(context.Background(), testNow)
	require.NoError(t, err)
	assert.Len(t, entries, CurrentLimit)
	assert.Equal(t, int64(1), entries[0].EventID)
}

func TestReportService_WindowBoundaries(t *testing.T) {
	store := &memStore{events: []model.ClockEvent{
		event(1, "1", "etimeclockwp-in_01", epoch(testNow.Add(-CurrentWindow))),
		event(2, "2", "etimeclockwp-in_01", epoch(testNow.Add(-StaleThreshold))),
		event(3, "3", "etimeclockwp-in_01", epoch(testNow.Add(-StaleThreshold-time.Second))),
		event(4, "4", "etimeclockwp-in_01", epoch(StaleFloor)),
	}}
	svc := newTestService(store)

	current, err := svc.CurrentlyClockedIn(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(current))

	stale, err := svc.StaleClockIns(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, ids(stale))
}

func TestReportService_RecentClockOuts(t *testing.T) {
	svc := newTestService(fixtureStore())

	entries, err := svc.RecentClockOuts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{5, 6}, ids(entries))

	assert.True(t, entries[0].HasTimestamp)
	assert.Equal(t, int64(1700000000), entries[0].Timestamp)
	assert.Equal(t, "extra", entries[0].Extra)

	assert.False(t, entries[1].HasTimestamp)
	_, ok := entries[1].Time()
	assert.False(t, ok)
}

func TestReportService_RecentClockOuts_SortedAndCapped(t *testing.T) {
	store := &memStore{}
	for i := 0; i < 15; i++ {
		value := strconv.Itoa(1700000000+i*60) + "|note"
		store.events = append(store.events, event(int64(i+1), strconv.Itoa(i), "etimeclockwp-out_01", value))
	}
	svc := newTestService(store)

	entries, err := svc.RecentClockOuts(context.Background())
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), RecentClockOutLimit)

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].Timestamp, entries[i].Timestamp)
	}
}

func TestReportService_ResolveDisplayName(t *testing.T) {
	store := fixtureStore()
	store.names[107] = "   "
	svc := newTestService(store)
	ctx := context.Background()

	assert.Equal(t, "Ana Pop", svc.ResolveDisplayName(ctx, "101"))
	assert.Equal(t, "102", svc.ResolveDisplayName(ctx, "102"))
	assert.Equal(t, "107", svc.ResolveDisplayName(ctx, "107"))
	assert.Equal(t, "jdoe", svc.ResolveDisplayName(ctx, "jdoe"))

	store.attrErr = errors.New("timeout")
	assert.Equal(t, "101", svc.ResolveDisplayName(ctx, "101"))
}

func TestReportService_BuildReport(t *testing.T) {
	svc := newTestService(fixtureStore())

	report := svc.BuildReport(context.Background())
	require.Len(t, report.Sections, 3)
	assert.Equal(t, testNow, report.GeneratedAt)

	current, ok := report.Section(model.SectionCurrent)
	require.True(t, ok)
	require.Len(t, current.Entries, 1)
	assert.Equal(t, "Ana Pop", current.Entries[0].DisplayName)

	stale, _ := report.Section(model.SectionStale)
	require.Len(t, stale.Entries, 1)
	assert.Equal(t, "102", stale.Entries[0].DisplayName)

	recent, _ := report.Section(model.SectionRecent)
	require.Len(t, recent.Entries, 2)
	assert.Equal(t, "Dan Ionescu", recent.Entries[0].DisplayName)
	assert.Equal(t, "106", recent.Entries[1].DisplayName)

	for _, s := range report.Sections {
		assert.False(t, s.Failed())
		assert.NotEmpty(t, s.EmptyMessage)
	}
}

func TestReportService_BuildReport_IsolatesFailures(t *testing.T) {
	store := fixtureStore()
	store.findOpenErr = func(window model.Window) error {
		if window.Until == 0 {
			return errors.New("statement timeout")
		}
		return nil
	}
	svc := newTestService(store)

	report := svc.BuildReport(context.Background())

	current, _ := report.Section(model.SectionCurrent)
	assert.True(t, current.Failed())
	assert.Empty(t, current.Entries)

	stale, _ := report.Section(model.SectionStale)
	assert.False(t, stale.Failed())
	assert.Len(t, stale.Entries, 1)

	recent, _ := report.Section(model.SectionRecent)
	assert.False(t, recent.Failed())
	assert.Len(t, recent.Entries, 2)
}

func TestReportService_BreakerOpens(t *testing.T) {
	store := &memStore{findClosedErr: errors.New("connection refused")}
	svc := newTestService(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RecentClockOuts(ctx)
		require.Error(t, err)
	}
	callsBefore := store.calls

	_, err := svc.RecentClockOuts(ctx)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBefore, store.calls)

	// name lookups degrade to the raw reference while the breaker is open
	assert.Equal(t, "101", svc.ResolveDisplayName(ctx, "101"))
}

func TestReportService_BreakerIgnoresCallerCancellation(t *testing.T) {
	store := fixtureStore()
	store.findOpenErr = func(window model.Window) error { return context.Canceled }
	svc := newTestService(store)

	for i := 0; i < 10; i++ {
		_, err := svc.CurrentlyClockedIn(context.Background(), testNow)
		require.ErrorIs(t, err, context.Canceled)
	}
	store.findOpenErr = func(window model.Window) error { return context.DeadlineExceeded }
	for i := 0; i < 10; i++ {
		_, err := svc.CurrentlyClockedIn(context.Background(), testNow)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	store.findOpenErr = nil
	entries, err := svc.CurrentlyClockedIn(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(entries))
	assert.Equal(t, gobreaker.StateClosed, svc.cb.State())
}
