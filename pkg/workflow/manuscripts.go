package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/storage"
	"github.com/platinummonkey/folio/pkg/tenants"
)

// ErrNoFileStore is returned by manuscript operations when the service was
// built without WithFileStore.
var ErrNoFileStore = errors.New("manuscript storage is not configured")

// AttachManuscript stores a manuscript file and points the submission at
// it, replacing any earlier file. Only the author may upload. The new file
// counts against the tenant's storage quota; the replaced file is removed
// once the new reference is committed.
func (s *Service) AttachManuscript(ctx context.Context, actor *auth.User, submissionID int64, name string, size int64, r io.Reader) (*Submission, error) {
	const op = "attach_manuscript"
	var (
		sub    *Submission
		oldRef string
	)
	err := s.run(ctx, op, actor, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.Int64("folio.submission_id", submissionID),
			attribute.Int64("folio.file_size", size),
		)
		if s.files == nil {
			return ErrNoFileStore
		}
		if err := storage.ValidateUpload(name, size, s.maxUpload); err != nil {
			return err
		}

		current, err := s.GetSubmission(ctx, actor, submissionID)
		if err != nil {
			return err
		}
		if current.AuthorID != actor.ID {
			return errs.Denied(op)
		}
		// Fail fast before the upload; the check is repeated in the
		// transaction below.
		if err := tenants.NewQuotas(s.db).CheckStorageQuota(ctx, current.TenantID, size-current.ManuscriptSize); err != nil {
			return err
		}

		ref, err := s.files.Save(ctx, io.LimitReader(r, size), name)
		if err != nil {
			return fmt.Errorf("failed to save manuscript: %w", err)
		}

		err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			var err error
			sub, err = loadSubmission(ctx, tx, submissionID)
			if err != nil {
				return err
			}
			if err := tenants.NewQuotas(tx).CheckStorageQuota(ctx, sub.TenantID, size-sub.ManuscriptSize); err != nil {
				return err
			}
			now := s.clock.Now().UTC()
			_, err = tx.ExecContext(ctx, `
				UPDATE submissions SET manuscript_ref = $1, manuscript_size = $2, updated_at = $3 WHERE id = $4
			`, ref, size, now, sub.ID)
			if err != nil {
				return fmt.Errorf("failed to attach manuscript: %w", err)
			}
			oldRef = sub.ManuscriptRef
			sub.ManuscriptRef = ref
			sub.ManuscriptSize = size
			sub.UpdatedAt = now
			return nil
		})
		if err != nil {
			if derr := s.files.Delete(ctx, ref); derr != nil {
				s.logger.WithError(derr).WithField("ref", ref).Warn("Failed to remove orphaned manuscript")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oldRef != "" {
		if err := s.files.Delete(ctx, oldRef); err != nil {
			s.logger.WithError(err).WithField("ref", oldRef).Warn("Failed to remove replaced manuscript")
		}
	}
	return sub, nil
}

// OpenManuscript returns a reader over a visible submission's manuscript and
// its original file name.
func (s *Service) OpenManuscript(ctx context.Context, actor *auth.User, submissionID int64) (io.ReadCloser, string, error) {
	if s.files == nil {
		return nil, "", ErrNoFileStore
	}
	sub, err := s.GetSubmission(ctx, actor, submissionID)
	if err != nil {
		return nil, "", err
	}
	if sub.ManuscriptRef == "" {
		return nil, "", errs.NotFoundf("open_manuscript", "manuscript")
	}
	rc, err := s.files.Open(ctx, sub.ManuscriptRef)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", errs.NotFoundf("open_manuscript", "manuscript")
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open manuscript: %w", err)
	}
	return rc, storage.OriginalName(sub.ManuscriptRef), nil
}
