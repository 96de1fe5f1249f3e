package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clockreport.service/internal/ports/messaging"
	"github.com/rs/zerolog/log"
)

// StaleNotifier publishes a reminder for every stale clock-in so that a
// supervisor can close the forgotten session. A notifier reminds once per
// event: an event is only announced again after it has left the stale list.
type StaleNotifier struct {
	reports  *ReportService
	producer messaging.ReminderProducer

	mu       sync.Mutex
	notified map[int64]struct{}
}

func NewStaleNotifier(reports *ReportService, p messaging.ReminderProducer) *StaleNotifier {
	return &StaleNotifier{reports: reports, producer: p, notified: make(map[int64]struct{})}
}

// Notify runs the stale report at now and publishes one message per entry not
// yet announced by this notifier. It returns how many reminders were sent and
// stops at the first publish error.
func (n *StaleNotifier) Notify(ctx context.Context, now time.Time) (int, error) {
	entries, err := n.reports.StaleClockIns(ctx, now)
	if err != nil {
		return 0, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	stale := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		stale[e.EventID] = struct{}{}
	}
	// closed events drop out so a later reopening is reminded again
	for id := range n.notified {
		if _, ok := stale[id]; !ok {
			delete(n.notified, id)
		}
	}

	sent := 0
	for _, e := range entries {
		if _, done := n.notified[e.EventID]; done {
			continue
		}
		clockIn, _ := e.Time()
		event := messaging.StaleClockInEvent{
			EventID:     e.EventID,
			UserRef:     e.UserRef,
			DisplayName: n.reports.ResolveDisplayName(ctx, e.UserRef),
			ClockInTime: clockIn,
			DetectedAt:  now.UTC(),
		}
		if err := n.producer.PublishReminder(ctx, event); err != nil {
			return sent, fmt.Errorf("failed to publish reminder for event %d: %w", e.EventID, err)
		}
		n.notified[e.EventID] = struct{}{}
		sent++
	}

	log.Ctx(ctx).Info().Int("count", sent).Int("stale", len(entries)).Msg("Stale clock-in reminders published")
	return sent, nil
}
