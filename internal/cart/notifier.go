package cart

import (
	"sync"

	"go.uber.org/zap"
)

// LogNotifier is a Notifier for headless clients: it logs every side effect
// and remembers the badge and the last toast so callers can render them.
type LogNotifier struct {
	logger *zap.Logger

	mu        sync.Mutex
	badge     string
	lastToast string
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SetBadge(text string) {
	n.mu.Lock()
	n.badge = text
	n.mu.Unlock()
	n.logger.Debug("cart badge", zap.String("text", text))
}

func (n *LogNotifier) RemoveBadge() {
	n.mu.Lock()
	n.badge = ""
	n.mu.Unlock()
	n.logger.Debug("cart badge removed")
}

func (n *LogNotifier) Toast(message string) {
	n.mu.Lock()
	n.lastToast = message
	n.mu.Unlock()
	n.logger.Info("toast", zap.String("message", message))
}

// Badge returns the badge text; empty means no badge is shown.
func (n *LogNotifier) Badge() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.badge
}

func (n *LogNotifier) LastToast() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastToast
}
