// Package cache caches per-user role sets.
//
// Every authenticated request needs the caller's roles. RoleCache keeps them
// in an in-process expirable LRU, optionally backed by Redis so that a role
// change on one replica is visible to the others after Invalidate. Concurrent
// misses for the same user are coalesced into one load.
package cache
