package model

import (
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// State is a processing state of a run trigger message. It is stored in Firestore so that a redelivered Pub/Sub message does not start a second run.
type State struct {
	ID        string          `firestore:"id"`
	RequestID types.RequestID `firestore:"request_id"`
	RunID     types.RunID     `firestore:"run_id"`
	State     types.MsgState  `firestore:"state"`
	// Attempts is the number of runs started for the message, including the current one.
	Attempts  int       `firestore:"attempts"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
	TTL       time.Time `firestore:"ttl"`
}

// CanTakeOver returns true if a new run may start for the message. A running state expires at ExpiresAt because the process handling it may have been killed. Unknown states are never taken over.
func (x *State) CanTakeOver(now time.Time) bool {
	switch x.State {
	case types.MsgRunning:
		return x.ExpiresAt.Before(now)
	case types.MsgFailed:
		return true
	default:
		return false
	}
}

// TakeOver returns x as the successor of prev. prev may be nil for the first delivery.
func (x *State) TakeOver(prev *State) *State {
	next := *x
	next.Attempts = 1
	if prev != nil {
		next.Attempts = prev.Attempts + 1
	}
	return &next
}
