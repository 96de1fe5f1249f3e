package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"clockreport.service/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StoreOptions selects which records of the shared store belong to the time clock.
type StoreOptions struct {
	Keys        model.MetaKeys
	EventType   string
	EventStatus string
}

// ClockEventRepository reads clock events from the PostgreSQL entity/attribute tables.
type ClockEventRepository struct {
	DB   *sql.DB
	opts StoreOptions
}

// NewClockEventRepository create new instance
func NewClockEventRepository(db *sql.DB, opts StoreOptions) *ClockEventRepository {
	return &ClockEventRepository{DB: db, opts: opts}
}

// The inner select keeps one attribute per event (smallest key) before the
// window is applied. Values that are not plain digits turn into NULL ts.
const openEventsQuery = `SELECT c.id, c.user_ref, c.meta_key, c.meta_value
  FROM (
        SELECT DISTINCT ON (e.id) e.id, e.user_ref, m.meta_key, m.meta_value,
               CASE WHEN m.meta_value ~ '^[0-9]{1,18}$' THEN m.meta_value::bigint END AS ts
          FROM clock_events e
          JOIN clock_event_meta m ON m.event_id = e.id
         WHERE e.event_type = $1
           AND e.status = $2
           AND m.meta_key LIKE $3
           AND NOT EXISTS (
                SELECT 1
                  FROM clock_event_meta o
                 WHERE o.event_id = e.id
                   AND o.meta_key LIKE $4
           )
         ORDER BY e.id, m.meta_key
       ) c
 WHERE c.ts >= $5::bigint
   AND ($6::bigint = 0 OR c.ts < $6::bigint)
 ORDER BY c.ts DESC, c.id DESC
 LIMIT $7`

const closedEventsQuery = `SELECT c.id, c.user_ref, c.meta_key, c.meta_value
  FROM (
        SELECT DISTINCT ON (e.id) e.id, e.user_ref, m.meta_key, m.meta_value,
               CASE WHEN split_part(m.meta_value, '|', 1) ~ '^[0-9]{1,18}$'
                    THEN split_part(m.meta_value, '|', 1)::bigint END AS ts
          FROM clock_events e
          JOIN clock_event_meta m ON m.event_id = e.id
         WHERE e.event_type = $1
           AND e.status = $2
           AND m.meta_key LIKE $3
         ORDER BY e.id, m.meta_key
       ) c
 ORDER BY c.ts DESC NULLS LAST, c.id DESC
 LIMIT $4`

const attributeQuery = `SELECT meta_value
  FROM clock_event_meta
 WHERE event_id = $1
   AND meta_key = $2
 ORDER BY id
 LIMIT 1`

// FindOpenEvents get clock-ins inside window that were never closed.
func (r *ClockEventRepository) FindOpenEvents(ctx context.Context, window model.Window, limit int) ([]model.ClockEvent, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("app.window_from", window.From),
		attribute.Int64("app.window_until", window.Until),
		attribute.Int("app.limit", limit),
	)

	rows, err := r.DB.QueryContext(ctx, openEventsQuery,
		r.opts.EventType, r.opts.EventStatus,
		likePrefix(r.opts.Keys.InPrefix), likePrefix(r.opts.Keys.OutPrefix),
		window.From, window.Until, limit)
	if err != nil {
		return nil, fmt.Errorf("query open events: %w", err)
	}
	return r.scanEvents(rows)
}

// FindClosedEvents get the latest clock-outs.
func (r *ClockEventRepository) FindClosedEvents(ctx context.Context, limit int) ([]model.ClockEvent, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("app.limit", limit))

	rows, err := r.DB.QueryContext(ctx, closedEventsQuery,
		r.opts.EventType, r.opts.EventStatus, likePrefix(r.opts.Keys.OutPrefix), limit)
	if err != nil {
		return nil, fmt.Errorf("query closed events: %w", err)
	}
	return r.scanEvents(rows)
}

// GetAttribute fetches one metadata value of an event.
func (r *ClockEventRepository) GetAttribute(ctx context.Context, eventID int64, key string) (string, bool, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("app.event_id", eventID))

	var value sql.NullString
	err := r.DB.QueryRowContext(ctx, attributeQuery, eventID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query attribute %s of event %d: %w", key, eventID, err)
	}
	// a NULL meta_value counts as unset
	return value.String, value.Valid, nil
}

func (r *ClockEventRepository) scanEvents(rows *sql.Rows) ([]model.ClockEvent, error) {
	defer rows.Close()

	var events []model.ClockEvent
	for rows.Next() {
		var (
			e     model.ClockEvent
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserRef, &key, &value); err != nil {
			return nil, fmt.Errorf("scan clock event: %w", err)
		}
		// NULL parses like an empty value: the attribute is kept without a timestamp
		if attr, ok := r.opts.Keys.Parse(key, value.String); ok {
			e.Attributes = append(e.Attributes, attr)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clock events: %w", err)
	}
	return events, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching keys that start with prefix.
// Underscores in the plugin's keys must not act as wildcards.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
