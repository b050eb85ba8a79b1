// Package visibility decides which submissions, reviews and journals a user
// may read.
//
// Admins and editors with a tenant see every record of their tenant. Everyone
// else sees only their own submissions (as author) and their own reviews (as
// reviewer). Every read path in the workflow and journal services builds its
// WHERE clause from a Scope, so no list, search or filter can bypass it.
//
// Clause builders assume the conventional aliases: s for submissions, r for
// reviews and j for journals.
package visibility

import (
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Scope is the set of records a user may read.
type Scope struct {
	UserID int64
	// TenantID is nil for users without a tenant.
	TenantID *int64
	// TenantWide is set for staff with a tenant.
	TenantWide bool
}

// For computes u's scope. A nil user gets a scope that matches nothing.
func For(u *auth.User) Scope {
	if u == nil {
		return Scope{}
	}
	sc := Scope{UserID: u.ID, TenantID: u.TenantID}
	// Staff without a tenant fall back to their own records.
	sc.TenantWide = rbac.IsStaff(u) && u.TenantID != nil
	return sc
}

// Submissions returns a predicate over s/j restricting rows to visible
// submissions.
func (sc Scope) Submissions(a *database.Args) string {
	if sc.TenantWide {
		return "j.tenant_id = " + a.Add(*sc.TenantID)
	}
	return "s.author_id = " + a.Add(sc.UserID)
}

// Reviews returns a predicate over r/j restricting rows to visible reviews.
func (sc Scope) Reviews(a *database.Args) string {
	if sc.TenantWide {
		return "j.tenant_id = " + a.Add(*sc.TenantID)
	}
	return "r.reviewer_id = " + a.Add(sc.UserID)
}

// Journals returns a predicate over j. Users see their tenant's journals;
// only staff see inactive ones. Users without a tenant see none.
func (sc Scope) Journals(a *database.Args) string {
	if sc.TenantID == nil {
		return "1 = 0"
	}
	clause := "j.tenant_id = " + a.Add(*sc.TenantID)
	if !sc.TenantWide {
		clause += " AND j.active = " + a.Add(true)
	}
	return clause
}

// AllowsSubmission reports whether a submission by authorID in a journal of
// tenantID is visible.
func (sc Scope) AllowsSubmission(authorID, tenantID int64) bool {
	if sc.TenantWide {
		return *sc.TenantID == tenantID
	}
	return sc.UserID != 0 && sc.UserID == authorID
}

// AllowsReview reports whether a review assigned to reviewerID on a
// submission of tenantID is visible.
func (sc Scope) AllowsReview(reviewerID, tenantID int64) bool {
	if sc.TenantWide {
		return *sc.TenantID == tenantID
	}
	return sc.UserID != 0 && sc.UserID == reviewerID
}

// AllowsJournal reports whether a journal is visible.
func (sc Scope) AllowsJournal(tenantID int64, active bool) bool {
	if sc.TenantID == nil || *sc.TenantID != tenantID {
		return false
	}
	return active || sc.TenantWide
}
