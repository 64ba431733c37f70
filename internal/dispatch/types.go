package dispatch

import "strings"

// Rejection reasons. invalid_client_state is deliberately a single opaque
// reason for every signature-path failure so responses leak nothing about
// which check rejected the token.
const (
	ReasonInvalidClientState   = "invalid_client_state"
	ReasonMissingMessageID     = "missing_message_id"
	ReasonMissingConfiguration = "missing_configuration"
	ReasonProcessingFailed     = "processing_failed"
)

// Notification is one inbound change notification from the provider.
type Notification struct {
	SubscriptionID string        `json:"subscriptionId"`
	ClientState    string        `json:"clientState"`
	Resource       string        `json:"resource"`
	ResourceData   *ResourceData `json:"resourceData,omitempty"`
	ChangeType     string        `json:"changeType,omitempty"`
}

// ResourceData carries the changed entity's identifier when the provider
// includes it.
type ResourceData struct {
	ID string `json:"id"`
}

// MessageID resolves the affected message identifier: the explicit resource
// data id when present, else the trailing path segment of the resource.
func (n Notification) MessageID() string {
	if n.ResourceData != nil {
		if id := strings.TrimSpace(n.ResourceData.ID); id != "" {
			return id
		}
	}
	resource := strings.TrimRight(strings.TrimSpace(n.Resource), "/")
	if resource == "" {
		return ""
	}
	if idx := strings.LastIndex(resource, "/"); idx >= 0 {
		resource = resource[idx+1:]
	}
	return strings.TrimSpace(resource)
}

// ProcessedItem records one successfully forwarded notification.
type ProcessedItem struct {
	SubjectID      string `json:"subjectId"`
	MessageID      string `json:"messageId"`
	SubscriptionID string `json:"subscriptionId"`
	DraftID        string `json:"draftId,omitempty"`
}

// RejectedItem records one notification that was not forwarded.
type RejectedItem struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Outcome is the per-batch dispatch result. Every notification in the batch
// lands in exactly one of Processed or Rejected.
type Outcome struct {
	Received  int             `json:"received"`
	Drafted   int             `json:"drafted"`
	Processed []ProcessedItem `json:"processed"`
	Rejected  []RejectedItem  `json:"rejected"`
}
