// Package notify is the outbound, fire-and-forget notification sink.
package notify

// Notifier delivers a short text message. Failures are logged by the
// implementation and never propagated.
type Notifier interface {
	Notify(text string)
}

// Noop discards every message.
type Noop struct{}

func (Noop) Notify(string) {}
