// Package cache provides the query result cache and the corpus version
// counter that scopes cached entries to a snapshot of the indexes.
package cache

import "sync/atomic"

// Version is a monotonically increasing corpus version counter. Every
// committed mutation of the indexes bumps it, which implicitly invalidates
// all cache entries keyed under earlier versions.
type Version struct {
	value atomic.Uint64
}

// Current returns the current corpus version.
func (v *Version) Current() uint64 {
	return v.value.Load()
}

// Bump advances the version after a mutation has been fully applied and
// returns the new value.
func (v *Version) Bump() uint64 {
	return v.value.Add(1)
}
