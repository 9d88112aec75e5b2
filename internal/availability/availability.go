// Package availability decides whether human admins are expected to be on duty.
// It is a schedule check against Philippine business hours, not live presence.
package availability

import (
	"time"

	"supportdesk/backend/internal/config"
)

// Reason explains a Decision and selects the bot greeting.
type Reason string

const (
	ReasonOpen         Reason = "open"
	ReasonOutsideHours Reason = "outside_hours"
	// ReasonBusy means admins are on schedule but the desk is forced offline.
	ReasonBusy Reason = "busy"
)

// Decision is the outcome of one availability check.
type Decision struct {
	Available bool
	Reason    Reason
}

// Policy holds the schedule and the optional testing override.
type Policy struct {
	// Location is the local time zone of the desk. A nil Location fails toward bot service.
	Location  *time.Location
	StartHour int
	EndHour   int
	// Override is one of config.OverrideNone, OverrideForceAvailable, OverrideForceOffline.
	Override string
}

// PhilippineTime is UTC+8. The Philippines observes no daylight saving,
// so a fixed zone needs no tzdata on the host.
var PhilippineTime = time.FixedZone("PHT", config.PhilippineUTCOffset)

// NewPolicy returns the business-hours policy with the given override.
func NewPolicy(override string) Policy {
	return Policy{
		Location:  PhilippineTime,
		StartHour: config.BusinessDayStartHour,
		EndHour:   config.BusinessDayEndHour,
		Override:  override,
	}
}

// Decide evaluates the policy at now.
func (p Policy) Decide(now time.Time) Decision {
	switch p.Override {
	case config.OverrideForceAvailable:
		return Decision{Available: true, Reason: ReasonOpen}
	case config.OverrideForceOffline:
		return Decision{Available: false, Reason: ReasonBusy}
	}
	if p.Location == nil {
		return Decision{Available: false, Reason: ReasonOutsideHours}
	}

	local := now.In(p.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return Decision{Available: false, Reason: ReasonOutsideHours}
	}
	if h := local.Hour(); h < p.StartHour || h >= p.EndHour {
		return Decision{Available: false, Reason: ReasonOutsideHours}
	}
	return Decision{Available: true, Reason: ReasonOpen}
}

// IsAvailable is Decide(now).Available.
func (p Policy) IsAvailable(now time.Time) bool {
	return p.Decide(now).Available
}
