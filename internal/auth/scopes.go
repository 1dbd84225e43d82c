package auth

// Scopes granted to focusforge tokens. Write implies read.
const (
	ScopeActivityWrite = "activity:write"
	ScopeActivityRead  = "activity:read"
)
