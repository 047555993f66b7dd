package session

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activity is the repository surface for audit entries.
type Activity interface {
	repository.Repository[*ActivityRecord]
}

// NewActivityRepository builds the bun-backed activity repository.
func NewActivityRepository(db *bun.DB) Activity {
	return repository.NewRepository[*ActivityRecord](db, repository.ModelHandlers[*ActivityRecord]{
		NewRecord: func() *ActivityRecord { return &ActivityRecord{} },
		GetID: func(r *ActivityRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *ActivityRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})
}

// StoreActivitySink persists activity events through the Activity
// repository. Best-effort by contract: callers log returned errors and
// continue.
type StoreActivitySink struct {
	repo   Activity
	logger Logger
}

// NewStoreActivitySink builds a sink over the given repository.
func NewStoreActivitySink(repo Activity) *StoreActivitySink {
	return &StoreActivitySink{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the sink logger.
func (s *StoreActivitySink) WithLogger(logger Logger) *StoreActivitySink {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Record implements ActivitySink.
func (s *StoreActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	record := &ActivityRecord{
		ID:         uuid.New(),
		EventType:  string(event.EventType),
		ActorID:    event.Actor.ID,
		ActorType:  event.Actor.Type,
		ExternalID: event.ExternalID,
		FromState:  string(event.FromState),
		ToState:    string(event.ToState),
		Metadata:   event.Metadata,
	}

	if !event.OccurredAt.IsZero() {
		occurredAt := event.OccurredAt
		record.OccurredAt = &occurredAt
	}

	if _, err := s.repo.Create(ctx, record); err != nil {
		return err
	}
	return nil
}

var _ ActivitySink = (*StoreActivitySink)(nil)
