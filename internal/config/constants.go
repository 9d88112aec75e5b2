package config

import "time"

const (
	// Session lifecycle
	UserInactivityTimeout = 2 * time.Minute
	ReaperCadence         = 1 * time.Minute

	// Business hours, Philippine local time (UTC+8, no DST)
	BusinessDayStartHour = 8
	BusinessDayEndHour   = 17
	PhilippineUTCOffset  = 8 * 60 * 60

	// Pull fallback
	RefreshDebounce = 500 * time.Millisecond

	// Legacy message encoding: canned text + marker + JSON array of {label, value}
	LegacyButtonsMarker = "__BUTTONS__"

	// Anonymous tokens
	AnonTokenIssuer = "supportdesk-service"
	DefaultAnonTTL  = 30 * 24 * time.Hour

	// Limits
	MaxConcernLength = 1000
	MaxMessageLength = 4000
	MaxNameLength    = 100
)

// Availability overrides accepted from configuration. Ignored in production.
const (
	OverrideNone           = ""
	OverrideForceAvailable = "force_available"
	OverrideForceOffline   = "force_offline"
)

const EnvironmentProduction = "production"
