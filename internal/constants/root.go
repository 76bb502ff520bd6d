package constants

import "time"

const (
	AppName = "tally"
	Version = "v0.3.0"

	// KeyringService and KeyringAccount identify the single secret the client persists.
	KeyringService = "tally.auth"
	KeyringAccount = "jwt"

	DefaultBaseURL   = "http://localhost:8080"
	DefaultConfigDir = "~/.config/tally"
	DefaultTimeout   = 60 * time.Second // per request

	LogFileName = "tally.log"

	// API paths
	PathLogin     = "/api/auth/login"
	PathRegister  = "/api/auth/register"
	PathDashboard = "/api/dashboard"
	PathStats     = "/api/stats"
	PathToday     = "/api/goals/today"
	PathGoals     = "/api/goals/"
	// PathCompleteSuffix is appended to PathGoals + goal ID.
	PathCompleteSuffix = "/complete"

	RequestIDHeader = "X-Request-ID"

	// User-facing messages
	MsgAuthFailed     = "Authentication failed. Please check your details."
	MsgRegisterFailed = "Registration failed. Please check your details."
	MsgStale          = "showing last known data (server unreachable)"
	MsgToggleBusy     = "that goal is still being updated"
)
