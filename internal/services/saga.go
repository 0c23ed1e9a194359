package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/models"
	"github.com/anonto42/meta-v/backend/internal/repositories"
	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SagaConfig tunes the retry loop of the second write.
type SagaConfig struct {
	MaxAttempts   uint
	RetryInterval time.Duration
}

// DefaultSagaConfig is used when no configuration is supplied.
func DefaultSagaConfig() SagaConfig {
	return SagaConfig{MaxAttempts: 3, RetryInterval: 50 * time.Millisecond}
}

// SagaStep is one user-document mutation of a two-document operation.
type SagaStep struct {
	User   primitive.ObjectID
	Change models.RelationChange
}

// Saga applies a relationship change to two user documents without a
// cross-document transaction. The first step runs once; the second is
// retried with exponential backoff. If the second step cannot be applied
// the first is rolled back, the operation is written to the repair log and
// a partial_failure error is returned.
type Saga struct {
	users   repositories.UserRepository
	repairs repositories.RepairRepository
	cfg     SagaConfig
}

func NewSaga(users repositories.UserRepository, repairs repositories.RepairRepository, cfg SagaConfig) *Saga {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultSagaConfig().MaxAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultSagaConfig().RetryInterval
	}
	return &Saga{users: users, repairs: repairs, cfg: cfg}
}

// Run executes first then second. A failing first step returns its own
// error untouched: nothing has been written yet.
func (s *Saga) Run(ctx context.Context, operation string, first, second SagaStep) error {
	if err := s.users.ApplyRelationChange(ctx, first.User, first.Change); err != nil {
		return err
	}

	attempts, err := s.retry(ctx, second)
	if err == nil {
		return nil
	}
	log.Printf("saga %s: second write on %s failed after %d attempts: %v", operation, second.User.Hex(), attempts, err)

	_, compErr := s.retry(ctx, SagaStep{User: first.User, Change: first.Change.Inverse()})
	if compErr != nil {
		log.Printf("saga %s: compensation on %s failed: %v", operation, first.User.Hex(), compErr)
	}
	if compErr == nil && errors.Is(err, repositories.ErrConflict) {
		// The second user refused the change and the first write is undone.
		return err
	}

	rec := &models.RepairRecord{
		Operation:   operation,
		FirstUser:   first.User.Hex(),
		SecondUser:  second.User.Hex(),
		Attempts:    attempts,
		Compensated: compErr == nil,
		LastError:   err.Error(),
	}
	if s.repairs != nil {
		// The request context may already be cancelled here.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := s.repairs.RecordRepair(recCtx, rec); rerr != nil {
			log.Printf("saga %s: recording repair failed: %v", operation, rerr)
		}
	}

	msg := "operation could not be completed on both users; it has been rolled back"
	if compErr != nil {
		msg = "operation was only partially applied and has been queued for repair"
	}
	return apperr.PartialFailure(msg, err)
}

func (s *Saga) retry(ctx context.Context, step SagaStep) (int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	b.MaxInterval = 20 * s.cfg.RetryInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := s.users.ApplyRelationChange(ctx, step.User, step.Change)
		if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrConflict) {
			// Neither a missing document nor a refused precondition changes by retrying.
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.cfg.MaxAttempts))
	return attempts, err
}
