package graph

import "fmt"

// CreateError reports a failed subscription creation, carrying the provider's
// HTTP status and raw error payload for the caller's retry policy.
type CreateError struct {
	Status int
	Body   string
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("graph: create subscription failed: status=%d body=%s", e.Status, e.Body)
}

// RenewError reports a failed subscription renewal.
type RenewError struct {
	SubscriptionID string
	Status         int
	Body           string
}

func (e *RenewError) Error() string {
	return fmt.Sprintf("graph: renew subscription %s failed: status=%d body=%s", e.SubscriptionID, e.Status, e.Body)
}
