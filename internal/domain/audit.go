package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditActionCreate    AuditAction = "create"
	AuditActionUpdate    AuditAction = "update"
	AuditActionDelete    AuditAction = "delete"
	AuditActionApproved  AuditAction = "approved"
	AuditActionRejected  AuditAction = "rejected"
	AuditActionCancelled AuditAction = "cancelled"
	AuditActionLoaned    AuditAction = "loaned"
	AuditActionReturned  AuditAction = "returned"
	AuditActionLost      AuditAction = "lost"
	AuditActionResolved  AuditAction = "resolved"
)

// Tracked entity type names.
const (
	EntityLoan     = "loan"
	EntityItem     = "item"
	EntitySanction = "sanction"
	EntityPatron   = "patron"
	EntityUser     = "user"
)

// AuditMode decides what happens when the audit write itself fails.
type AuditMode string

const (
	// AuditModeStrict rolls the business mutation back with the audit failure.
	AuditModeStrict AuditMode = "strict"
	// AuditModeBestEffort logs the audit failure and lets the mutation commit.
	AuditModeBestEffort AuditMode = "best_effort"
)

// AuditEntry is write-once. Before and After hold serialized copies taken
// at the time of the change.
type AuditEntry struct {
	ID         int64           `json:"id"`
	ActorID    *int32          `json:"actor_id,omitempty"`
	Action     AuditAction     `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	IPAddress  string          `json:"ip_address"`
	UserAgent  string          `json:"user_agent"`
	RequestID  string          `json:"request_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditChange describes one mutation before it is serialized into an AuditEntry.
type AuditChange struct {
	Actor      Actor
	Action     AuditAction
	EntityType string
	EntityID   string
	Before     any
	After      any
}

type AuditFilter struct {
	ActorID    *int32
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
	Limit      int32
	Offset     int32
}
