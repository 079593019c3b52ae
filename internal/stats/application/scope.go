package application

import (
	"errors"
	"strings"
)

// Scope names a partition of cached statistics, invalidated independently.
type Scope string

const (
	// ScopeGlobal caches the system-wide receivables summary.
	ScopeGlobal Scope = "global"
	// ScopeRecentActivities caches the recent-activity feed.
	ScopeRecentActivities Scope = "recent-activities"
	// ScopeAll is the invalidation wildcard. It is never a cache key.
	ScopeAll Scope = "all"

	representativePrefix = "representative:"
)

// ErrInvalidScope is returned for a scope outside the closed set.
var ErrInvalidScope = errors.New("stats: invalid cache scope")

// RepresentativeScope builds the per-account snapshot scope.
func RepresentativeScope(accountID string) Scope {
	return Scope(representativePrefix + accountID)
}

// ParseScope validates a raw scope string against the closed scope set:
// global, recent-activities, representative:<id>, or the wildcard all.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case ScopeGlobal, ScopeRecentActivities, ScopeAll:
		return Scope(raw), nil
	}
	if strings.HasPrefix(raw, representativePrefix) && len(raw) > len(representativePrefix) {
		return Scope(raw), nil
	}
	return "", ErrInvalidScope
}

// AccountID extracts the account id from a representative scope, or "".
func (s Scope) AccountID() string {
	if strings.HasPrefix(string(s), representativePrefix) {
		return strings.TrimPrefix(string(s), representativePrefix)
	}
	return ""
}
