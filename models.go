package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenRecord is one persisted token entry. The store keeps two rows per
// session (current + legacy key name); see DualKeyStore.
type TokenRecord struct {
	bun.BaseModel `bun:"table:session_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Key           string     `bun:"key,notnull,unique" json:"key,omitempty"`
	Value         string     `bun:"value,notnull" json:"value,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ActivityRecord is one persisted audit entry.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:session_activity,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EventType     string         `bun:"event_type,notnull" json:"event_type,omitempty"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	ActorType     string         `bun:"actor_type" json:"actor_type,omitempty"`
	ExternalID    string         `bun:"external_id" json:"external_id,omitempty"`
	FromState     string         `bun:"from_state" json:"from_state,omitempty"`
	ToState       string         `bun:"to_state" json:"to_state,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	OccurredAt    *time.Time     `bun:"occurred_at,nullzero,default:current_timestamp" json:"occurred_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
