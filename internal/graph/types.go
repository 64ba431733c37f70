package graph

import "time"

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// InboxResource watches new messages in the account's inbox.
const InboxResource = "me/mailFolders('inbox')/messages"

// DefaultLeadTime keeps requested expirations under the provider's ~60 minute
// ceiling for mail resources.
const DefaultLeadTime = 55 * time.Minute

// Subscription is the provider's view of a push-notification registration.
type Subscription struct {
	ID                 string `json:"id"`
	Resource           string `json:"resource"`
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState"`
}

type subscriptionRequest struct {
	ChangeType          string `json:"changeType"`
	NotificationURL     string `json:"notificationUrl"`
	Resource            string `json:"resource"`
	ExpirationDateTime  string `json:"expirationDateTime"`
	ClientState         string `json:"clientState"`
	IncludeResourceData bool   `json:"includeResourceData"`
}

type renewRequest struct {
	ExpirationDateTime string `json:"expirationDateTime"`
}
