// Package cache provides a bounded, recency-ordered response cache whose
// entries carry their own expiration. Expired entries are not swept in the
// background; they are dropped the first time a read observes them.
package cache

import (
	"errors"
	"time"
)

// ErrInvalidCapacity is returned when a cache is constructed with a
// capacity below one.
var ErrInvalidCapacity = errors.New("cache: capacity must be at least 1")

// entry is a cached value together with its absolute expiration.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}
