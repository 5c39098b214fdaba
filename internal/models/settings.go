package models

// UserSettings holds per-user reminder preferences. Timezone is an
// IANA zone name used by the dispatcher to compute that user's "today".
type UserSettings struct {
	UserID               string `json:"user_id"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	Timezone             string `json:"timezone"`
}
