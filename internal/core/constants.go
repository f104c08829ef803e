package core

import "time"

// Content refresh status values used in logs and metrics
const (
	RefreshStatusOK    = "ok"
	RefreshStatusError = "error"
)

// Timeout defaults for refresh operations
const (
	DefaultRefreshTimeout   = 35 * time.Second
	DefaultFetchTimeout     = 10 * time.Second
	DefaultNetworkIdleDelay = 500 * time.Millisecond
)

// StaleAfter is how old a site's content may get before a bulk refresh
// fetches it again.
const StaleAfter = 24 * time.Hour

// Resource limits
const (
	MaxContentSize = 5 * 1024 * 1024 // 5MB
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (compatible; sitesd/1.0)"
)
