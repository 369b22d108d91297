package audit

import "time"

// Record is emitted from domain logic to capture key actions. Keep it
// transport-agnostic; the recorder assigns identity, time, and chain hashes.
type Record struct {
	ActorID      string
	TenantID     string
	Action       string
	ResourceType string
	ResourceID   string
	Success      bool
	Metadata     map[string]string
}

// Entry is a persisted audit record. EntryHash covers PrevHash plus the
// canonical serialization of every other field, so any rewrite of history
// breaks every subsequent hash.
type Entry struct {
	ID           string
	Timestamp    time.Time
	ActorID      string
	TenantID     string
	Action       string
	ResourceType string
	ResourceID   string
	Success      bool
	Metadata     map[string]string
	PrevHash     string
	EntryHash    string
}

type Action string

const (
	ActionLogin           Action = "auth.login"
	ActionLoginFailed     Action = "auth.login_failed"
	ActionLockoutTripped  Action = "auth.lockout_tripped"
	ActionTokenRefreshed  Action = "auth.token_refreshed"
	ActionRefreshReuse    Action = "auth.refresh_reuse_detected"
	ActionLogout          Action = "auth.logout"
	ActionSessionsRevoked Action = "auth.sessions_revoked"
	ActionPasswordChanged Action = "auth.password_changed"
	ActionShipmentUpdated Action = "shipment.updated"
	ActionWebhookReceived Action = "webhook.received"
	ActionWebhookRejected Action = "webhook.rejected"
)
