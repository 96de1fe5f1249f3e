package messaging

import "time"

// StaleClockInEvent is the JSON payload sent via SQS for the reminder queue
type StaleClockInEvent struct {
	EventID     int64     `json:"eventId"`
	UserRef     string    `json:"userRef"`
	DisplayName string    `json:"displayName"`
	ClockInTime time.Time `json:"clockInTime"`
	DetectedAt  time.Time `json:"detectedAt"`
}
