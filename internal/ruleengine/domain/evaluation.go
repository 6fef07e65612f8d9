package domain

import "fmt"

// Rejection reasons surfaced for observability. These are decision
// outcomes, not errors.
const (
	ReasonNoRuleConfig         = "no rule config"
	ReasonNoActivePlan         = "no active plan"
	ReasonPlanExpired          = "plan expired"
	ReasonOutsideWorkingHours  = "outside working hours"
	ReasonNumberExcluded       = "number excluded"
	ReasonAlreadyMessagedToday = "already messaged today"
	ReasonNonContactFiltered   = "non-contact filtered"
	ReasonContactFiltered      = "contact filtered"
)

// ReasonNoChannelForDirection builds the rejection reason used when a
// channel is disabled, unentitled, or has no template for the direction.
func ReasonNoChannelForDirection(channel string, direction CallDirection) string {
	return fmt.Sprintf("no %s configured for %s calls", channel, direction)
}

// Evaluation is the per-event decision produced by the pipeline. It lives
// only for the handling of one event.
type Evaluation struct {
	Accepted     bool
	Reason       string
	SendSMS      bool
	Template     *Template
	SimSlot      int
	DelaySeconds int
}

// Rejected builds a non-accepted evaluation with the given reason.
func Rejected(reason string) Evaluation {
	return Evaluation{Accepted: false, Reason: reason}
}
