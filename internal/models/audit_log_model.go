package models

import "time"

// Audit target kinds.
const (
	AuditTargetUser         = "USER"
	AuditTargetRestaurant   = "RESTAURANT"
	AuditTargetSubscription = "SUBSCRIPTION"
)

// AuditLog records an administrative or billing change. ActorID is the UID
// that caused it, or "billing" for provider events.
type AuditLog struct {
	ID         string                 `json:"id" firestore:"-"`
	Timestamp  time.Time              `json:"timestamp" firestore:"timestamp"`
	UserID     string                 `json:"actorId" firestore:"actorId"`
	Action     string                 `json:"action" firestore:"action"`
	TargetType string                 `json:"targetType" firestore:"targetType"`
	TargetID   string                 `json:"targetId" firestore:"targetId"`
	Details    map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty"`
}
