// Package audit records security-relevant editorial events.
//
// # Overview
//
// Handlers record an event after each successful mutation (role changes,
// journal changes, submissions, reviewer assignment, reviews, status changes,
// manuscript uploads) and whenever a request is denied. Events carry the
// acting user, their tenant and the request ID from the request context.
//
// # Usage Example
//
//	audit.Record(ctx, audit.EventStatusChange, audit.ResourceSubmission,
//		strconv.FormatInt(sub.ID, 10), "status changed", map[string]interface{}{
//			"from": from, "to": to,
//		})
//
// The logger is taken from the context (see Middleware). When none is set,
// events are dropped.
//
// # Export
//
// Tenant admins can list and export their tenant's events as JSON, NDJSON
// or CSV.
package audit
