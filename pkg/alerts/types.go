package alerts

import "context"

// Alert describes a client that hit its daily conversion quota.
type Alert struct {
	Client  string `json:"client"`
	Day     string `json:"day"`
	Limit   int    `json:"limit"`
	Message string `json:"message"`
}

// Notifier sends quota alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert. Implementations must be safe for concurrent use.
	Send(ctx context.Context, alert Alert) error
}
