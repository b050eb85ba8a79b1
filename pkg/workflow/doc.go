// Package workflow implements the editorial workflow: submissions, reviewer
// assignment, reviews and editorial status changes.
//
// A submission moves submitted → under_review → accepted|rejected. By
// default editors and admins may set any status directly, so mis-assigned
// statuses can be corrected; Options.StrictTransitions turns on
// forward-only checks.
//
// Every mutation runs in a single transaction together with its status
// history row, so a failure part way through leaves nothing behind. Every
// read resolves the caller's visibility.Scope before touching storage.
package workflow
