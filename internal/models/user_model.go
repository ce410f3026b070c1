package models

import (
	"time"

	"github.com/example/menuboard/pkg/apitypes"
)

// User represents an account in the system.
type User struct {
	ID          string        `json:"id" firestore:"-"` // Firebase Auth UID, will be the document ID
	Email       string        `json:"email" firestore:"email"`
	DisplayName string        `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	PhotoURL    string        `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	Role        apitypes.Role `json:"role" firestore:"role"`
	Disabled    bool          `json:"disabled" firestore:"disabled"` // soft removal; the identity-provider account is kept
	CreatedAt   time.Time     `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt   time.Time     `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
