package workflow

import (
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/storage"
)

// Options tightens the default permissive workflow. All are off by default.
type Options struct {
	// StrictTransitions rejects status changes that move backwards or leave
	// a terminal state.
	StrictTransitions bool
	// GuardReassign only lets reviewer assignment move submitted or
	// under_review submissions into under_review.
	GuardReassign bool
	// UniqueReviewers rejects assigning the same reviewer twice to one
	// submission.
	UniqueReviewers bool
}

// Recorder receives workflow metrics.
type Recorder interface {
	RecordWorkflowOperation(op, outcome string)
	RecordStatusTransition(from, to string)
}

type nopRecorder struct{}

func (nopRecorder) RecordWorkflowOperation(op, outcome string) {}
func (nopRecorder) RecordStatusTransition(from, to string)     {}

// Option configures a Service.
type Option func(*Service)

// WithOptions sets the workflow options.
func WithOptions(o Options) Option {
	return func(s *Service) { s.opts = o }
}

// WithClock overrides the clock.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRecorder sends metrics to r.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithFileStore enables manuscript uploads. maxBytes <= 0 leaves uploads
// unbounded by size (tenant storage quotas still apply).
func WithFileStore(fs storage.FileStore, maxBytes int64) Option {
	return func(s *Service) {
		s.files = fs
		s.maxUpload = maxBytes
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// forward lists the states reachable from each state under strict rules.
var forward = map[Status][]Status{
	StatusSubmitted:   {StatusUnderReview, StatusRejected},
	StatusUnderReview: {StatusUnderReview, StatusAccepted, StatusRejected},
}

// checkTransition validates from → to. Permissive mode allows anything;
// strict mode allows same-status no-ops and the forward edges above.
func (o Options) checkTransition(op string, from, to Status) error {
	if !o.StrictTransitions || from == to {
		return nil
	}
	for _, next := range forward[from] {
		if next == to {
			return nil
		}
	}
	return errs.Transition(op, string(from), string(to))
}
