package repository

import (
	"context"

	"clockreport.service/internal/core/model"
)

// EventStore is the read contract the report service needs from the clock store.
type EventStore interface {
	// FindOpenEvents returns events whose clock-in falls in window and that
	// have no clock-out, newest clock-in first.
	FindOpenEvents(ctx context.Context, window model.Window, limit int) ([]model.ClockEvent, error)
	// FindClosedEvents returns events that have a clock-out, newest first.
	FindClosedEvents(ctx context.Context, limit int) ([]model.ClockEvent, error)
	// GetAttribute reads a single raw metadata value. ok is false when the
	// key is not set on the event.
	GetAttribute(ctx context.Context, eventID int64, key string) (value string, ok bool, err error)
}
