package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulse/internal/models"
	"pulse/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository is the vote ledger: the only writer of subject counters.
type VoteRepository interface {
	// Apply runs one toggle transition atomically. It returns an error
	// matching models.ErrWriteConflict when a concurrent writer got there
	// first; the caller may retry the whole call.
	Apply(ctx context.Context, ref models.SubjectRef, voterID string, dir models.Direction) (*models.VoteOutcome, error)
	Get(ctx context.Context, ref models.SubjectRef, voterID string) (models.Direction, error)
	ListByVoter(ctx context.Context, kind models.SubjectKind, voterID string, ids []uint) (map[uint]models.Direction, error)
}

type voteRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
	now func() time.Time
}

// NewVoteRepository returns the GORM-backed vote ledger.
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db, log: observability.NewRepoLogger("votes"), now: time.Now}
}

type counters struct {
	Upvotes   int64
	Downvotes int64
}

// clampedAdd keeps a counter at or above zero even if a bug elsewhere asks
// for a larger decrement than the current value.
func clampedAdd(column string, delta int64) clause.Expr {
	return gorm.Expr(fmt.Sprintf("CASE WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", column), delta, delta)
}

func (r *voteRepository) Apply(ctx context.Context, ref models.SubjectRef, voterID string, dir models.Direction) (*models.VoteOutcome, error) {
	model, table, err := subjectModel(ref.Kind)
	if err != nil {
		return nil, err
	}
	if dir != models.DirectionUp && dir != models.DirectionDown {
		return nil, models.NewInvalidDirectionError(string(dir))
	}

	ctx, span := observability.TraceRepositoryMethod(ctx, "vote.apply", table)
	defer span.End()
	defer observability.TrackQuery("apply_vote", table)()

	var out *models.VoteOutcome
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. the subject must exist
		var exists int64
		if err := tx.Model(model).Where("id = ?", ref.ID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewSubjectNotFoundError(ref)
		}

		// 2. current record, row-locked where the dialect supports it
		var rec models.VoteRecord
		current := models.DirectionNone
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subject_type = ? AND subject_id = ? AND voter_id = ?", ref.Kind, ref.ID, voterID).
			Take(&rec).Error
		switch {
		case err == nil:
			current = rec.Direction
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		plan := models.PlanVote(current, dir)

		// 3. record write, guarded by the direction we observed
		if err := r.writeRecord(tx, ref, voterID, rec, plan); err != nil {
			return err
		}

		// 4. counters as single atomic expressions
		updates := map[string]interface{}{}
		if plan.UpDelta != 0 {
			updates["upvotes"] = clampedAdd("upvotes", plan.UpDelta)
		}
		if plan.DownDelta != 0 {
			updates["downvotes"] = clampedAdd("downvotes", plan.DownDelta)
		}
		res := tx.Model(model).Where("id = ?", ref.ID).UpdateColumns(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// deleted between step 1 and now
			return models.NewSubjectNotFoundError(ref)
		}

		// 5. read back inside the transaction
		var c counters
		if err := tx.Model(model).Select("upvotes", "downvotes").Where("id = ?", ref.ID).Take(&c).Error; err != nil {
			return err
		}

		out = &models.VoteOutcome{
			SubjectType:        ref.Kind,
			SubjectID:          ref.ID,
			Upvotes:            c.Upvotes,
			Downvotes:          c.Downvotes,
			ResultingDirection: plan.Resulting,
			Transition:         plan.Transition,
		}
		return nil
	})

	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			span.SetAttributes(attribute.String("vote.error", appErr.Code))
			return nil, err
		}
		if isConflict(err) {
			r.log.LogConflict(ctx, map[string]interface{}{"subject": ref.String(), "voter_id": voterID})
			return nil, models.NewWriteConflictError(err)
		}
		span.RecordError(err)
		r.log.LogError(ctx, err, "apply")
		return nil, fmt.Errorf("apply vote on %s: %w", ref, err)
	}

	span.SetAttributes(
		attribute.String("vote.transition", string(out.Transition)),
		attribute.String("vote.resulting", string(out.ResultingDirection)),
	)
	r.log.LogUpdate(ctx, map[string]interface{}{
		"subject":    ref.String(),
		"voter_id":   voterID,
		"transition": string(out.Transition),
	})
	return out, nil
}

func (r *voteRepository) writeRecord(tx *gorm.DB, ref models.SubjectRef, voterID string, rec models.VoteRecord, plan models.Plan) error {
	var res *gorm.DB

	switch plan.Transition {
	case models.TransitionCast:
		// a concurrent first vote trips the unique index
		return tx.Create(&models.VoteRecord{
			SubjectType: ref.Kind,
			SubjectID:   ref.ID,
			VoterID:     voterID,
			Direction:   plan.Resulting,
		}).Error
	case models.TransitionRetract:
		res = tx.Where("id = ? AND direction = ?", rec.ID, plan.Previous).Delete(&models.VoteRecord{})
	case models.TransitionFlip:
		res = tx.Model(&models.VoteRecord{}).
			Where("id = ? AND direction = ?", rec.ID, plan.Previous).
			Updates(map[string]interface{}{"direction": plan.Resulting, "updated_at": r.now()})
	}

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return models.NewWriteConflictError(fmt.Errorf("vote record %d changed under %s", rec.ID, plan.Transition))
	}
	return nil
}

func (r *voteRepository) Get(ctx context.Context, ref models.SubjectRef, voterID string) (models.Direction, error) {
	var rec models.VoteRecord
	err := r.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ? AND voter_id = ?", ref.Kind, ref.ID, voterID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DirectionNone, nil
	}
	if err != nil {
		r.log.LogError(ctx, err, "get")
		return "", err
	}
	return rec.Direction, nil
}

func (r *voteRepository) ListByVoter(ctx context.Context, kind models.SubjectKind, voterID string, ids []uint) (map[uint]models.Direction, error) {
	out := make(map[uint]models.Direction, len(ids))
	if voterID == "" || len(ids) == 0 {
		return out, nil
	}

	var recs []models.VoteRecord
	err := r.db.WithContext(ctx).
		Select("subject_id", "direction").
		Where("subject_type = ? AND voter_id = ? AND subject_id IN ?", kind, voterID, ids).
		Find(&recs).Error
	if err != nil {
		r.log.LogError(ctx, err, "list_by_voter")
		return nil, err
	}
	for _, rec := range recs {
		out[rec.SubjectID] = rec.Direction
	}
	return out, nil
}
