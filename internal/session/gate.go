package session

import "time"

type Decision int

const (
	// Admitted: the request may proceed; the caller now owns the busy slot.
	Admitted Decision = iota
	// RejectedBusy: the user already has a request in flight.
	RejectedBusy
	// RejectedCooldown: too soon after the previous admission.
	RejectedCooldown
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case RejectedBusy:
		return "rejected_busy"
	case RejectedCooldown:
		return "rejected_cooldown"
	default:
		return "unknown"
	}
}

// Admission is the gate's verdict. Remaining is set only for
// RejectedCooldown, rounded up to whole seconds (never below 1s).
type Admission struct {
	Decision  Decision
	Remaining time.Duration
}

// Gate is the pure admission policy: busy check first, then cooldown.
// The operator is exempt from the cooldown but not from the busy check.
// A zero Cooldown disables the cooldown entirely.
type Gate struct {
	Cooldown time.Duration
	Operator UserID
}

// Evaluate decides admission from a snapshot of one user's state. It does
// not mutate anything; the hub applies it under the session lock so the
// check and the busy/timestamp update form one atomic step.
func (g Gate) Evaluate(id UserID, busy bool, lastRequest time.Time, now time.Time) Admission {
	if busy {
		return Admission{Decision: RejectedBusy}
	}
	if g.Cooldown > 0 && id != g.Operator && !lastRequest.IsZero() {
		elapsed := now.Sub(lastRequest)
		if elapsed < g.Cooldown {
			remaining := (g.Cooldown - elapsed).Round(time.Second)
			if remaining < time.Second {
				remaining = time.Second
			}
			return Admission{Decision: RejectedCooldown, Remaining: remaining}
		}
	}
	return Admission{Decision: Admitted}
}
