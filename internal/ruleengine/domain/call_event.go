package domain

// CallDirection classifies how a call ended up on the device.
type CallDirection string

const (
	DirectionIncoming CallDirection = "incoming"
	DirectionOutgoing CallDirection = "outgoing"
	DirectionMissed   CallDirection = "missed"
)

// Valid reports whether d is one of the known call directions.
func (d CallDirection) Valid() bool {
	switch d {
	case DirectionIncoming, DirectionOutgoing, DirectionMissed:
		return true
	}
	return false
}

// CallEvent is a notification that a call occurred. It is produced by the
// call-event source, consumed once by the evaluation pipeline, and never
// mutated.
type CallEvent struct {
	EventID         string        `json:"event_id"`
	Phone           string        `json:"phone"`
	Direction       CallDirection `json:"direction"`
	ContactName     string        `json:"contact_name"`
	DurationSeconds int           `json:"duration_seconds"`
}
