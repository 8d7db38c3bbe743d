package whitelist

import "time"

// URLStatus is the lifecycle state of a registered URL.
type URLStatus string

const (
	URLStatusActive  URLStatus = "active"
	URLStatusExpired URLStatus = "expired"
	URLStatusRemoved URLStatus = "removed"
)

// UserURL is a site a customer registered against one subscription.
type UserURL struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	SubscriptionID int64     `json:"subscription_id"`
	URL            string    `json:"url"`
	Status         URLStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Option is a versioned settings row. Version 0 means the row does not exist.
type Option struct {
	Name    string
	Value   []byte
	Version int64
}

// SubmitResult reports the outcome of a URL submission. Err carries the
// underlying error for errors.Is checks and is never serialized.
type SubmitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Err     error  `json:"-"`
}
