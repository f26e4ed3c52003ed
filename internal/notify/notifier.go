package notify

import "log/slog"

// LogNotifier records notification requests in the log.
type LogNotifier struct{ L *slog.Logger }

func (n LogNotifier) Notify(k Kind) {
	if n.L != nil {
		n.L.Info("notification_requested", "kind", string(k))
	}
}

// Multi fans a request out to every non-nil notifier in order.
type Multi []Notifier

func (m Multi) Notify(k Kind) {
	for _, n := range m {
		if n != nil {
			n.Notify(k)
		}
	}
}
