package admin

import "time"

// LoginRequest carries the shared admin secret.
type LoginRequest struct {
	Secret string `json:"secret"`
}

// LoginResponse returns the bearer token for subsequent admin calls.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserInfoResponse is the HTTP DTO for one user row.
type UserInfoResponse struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username,omitempty"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Credits      int64      `json:"credits"`
	TotalLookups int64      `json:"total_lookups"`
	Banned       bool       `json:"banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
	LastActive   time.Time  `json:"last_active"`
}

// UsersListResponse wraps the user list.
type UsersListResponse struct {
	Users []*UserInfoResponse `json:"users"`
	Total int                 `json:"total"`
}

// CreditsRequest carries a grant or deduct amount.
type CreditsRequest struct {
	Amount int64 `json:"amount"`
}

// BalanceResponse returns the balance after a credit operation.
type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

// BanRequest carries the optional ban reason.
type BanRequest struct {
	Reason string `json:"reason"`
}

// ProtectRequest marks a value as protected.
type ProtectRequest struct {
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ProtectResponse reports whether the record was freshly created.
type ProtectResponse struct {
	Created bool `json:"created"`
}

// ProtectedRecordResponse is the HTTP DTO for a protected record.
type ProtectedRecordResponse struct {
	Value       string    `json:"value"`
	ProtectedBy int64     `json:"protected_by"`
	ProtectedAt time.Time `json:"protected_at"`
	Reason      string    `json:"reason,omitempty"`
}

// StatsResponse is the admin panel summary.
type StatsResponse struct {
	TotalUsers      int64            `json:"total_users"`
	BannedUsers     int64            `json:"banned_users"`
	ProtectedValues int64            `json:"protected_values"`
	TotalLookups    int64            `json:"total_lookups"`
	UsageByService  map[string]int64 `json:"usage_by_service"`
}
