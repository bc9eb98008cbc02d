// Package notify is the outbound notification boundary. Delivery itself
// (email, push) is an external collaborator; this package only defines the
// events the API emits and a log-backed default.
package notify

import "log"

// Notifier receives account lifecycle events.
type Notifier interface {
	Welcome(email, name string)
	Goodbye(email, name string)
}

// LogNotifier writes events to the process log. It stands in wherever a real
// delivery backend is not configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Welcome records a signup event.
func (n *LogNotifier) Welcome(email, name string) {
	log.Printf("notify: welcome %s <%s>", name, email)
}

// Goodbye records an account cancellation event.
func (n *LogNotifier) Goodbye(email, name string) {
	log.Printf("notify: goodbye %s <%s>", name, email)
}
