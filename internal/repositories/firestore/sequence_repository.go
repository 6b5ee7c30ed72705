package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	pfirestore "github.com/codfleet/api/internal/platform/firestore"
	"github.com/codfleet/api/internal/repositories"
)

const sequencesCollection = "sequences"

type sequenceDocument struct {
	Last      int64     `firestore:"last"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// SequenceRepository keeps one document per scope and bumps it inside a transaction.
type SequenceRepository struct {
	uow       *pfirestore.UnitOfWork
	sequences *pfirestore.BaseRepository[sequenceDocument]
}

func NewSequenceRepository(provider *pfirestore.Provider) (*SequenceRepository, error) {
	if provider == nil {
		return nil, errors.New("sequence repository requires firestore provider")
	}
	return &SequenceRepository{
		uow:       pfirestore.NewUnitOfWork(provider),
		sequences: pfirestore.NewBaseRepository[sequenceDocument](provider, sequencesCollection),
	}, nil
}

// Next joins the caller's transaction when there is one. Firestore requires reads before writes,
// so callers must ask for the number before writing anything themselves.
func (r *SequenceRepository) Next(ctx context.Context, scope string, ceiling int64) (int64, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return 0, &repositories.SequenceError{Err: repositories.ErrSequenceScope}
	}

	var next int64
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		var last int64
		doc, err := r.sequences.Get(ctx, scope)
		switch {
		case err == nil:
			last = doc.Data.Last
		case isNotFound(err):
		default:
			return err
		}
		if ceiling > 0 && last >= ceiling {
			return &repositories.SequenceError{Scope: scope, Last: last, Err: repositories.ErrSequenceExhausted}
		}
		next = last + 1
		return r.sequences.Set(ctx, scope, sequenceDocument{Last: next, UpdatedAt: time.Now().UTC()})
	})
	if err != nil {
		var seqErr *repositories.SequenceError
		if errors.As(err, &seqErr) {
			return 0, seqErr
		}
		return 0, pfirestore.WrapError("sequences.next", err)
	}
	return next, nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
