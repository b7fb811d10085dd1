package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidDateRange is returned when an entry's end precedes its start.
var ErrInvalidDateRange = errors.New("end date before start date")

// ScopeError is returned when a completion toggle or read targets a client
// outside the obligation's resolved (or viewer-visible) client set. The write
// is rejected outright rather than silently widening the tracked set.
type ScopeError struct {
	ObligationID string
	ClientID     string
}

func (e ScopeError) Error() string {
	return fmt.Sprintf("client %s is not in scope for obligation %s", e.ClientID, e.ObligationID)
}
