package notifier

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var global struct {
	mu sync.Mutex
	n  *Notifier
}

// Global returns process-wide notifier, creating it from environment config on first use.
// Invalid environment config is logged and defaults are used instead.
func Global() *Notifier {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.n == nil {
		global.n = newGlobal()
	}

	return global.n
}

func newGlobal() *Notifier {
	l := logrus.StandardLogger().WithField("component", "notifier")

	c, err := ConfigFromEnv()
	if err != nil {
		l.Errorf("couldn't read notifier config, using defaults: %v", err)
		c = DefaultConfig()
	}

	n, err := New(c, l)
	if err != nil {
		l.Errorf("couldn't create notifier, retrying without backlog: %v", err)
		c.BacklogEnabled = false
		if n, err = New(c, l); err != nil {
			l.Errorf("couldn't create notifier, using defaults: %v", err)
			n, _ = New(DefaultConfig(), l)
		}
	}

	return n
}

// SetGlobal replaces process-wide notifier. Replaced notifier is not closed.
func SetGlobal(n *Notifier) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.n = n
}

// ResetGlobal clears cached process-wide notifier, so next Global call creates a fresh one.
// Cleared notifier is not closed.
func ResetGlobal() {
	SetGlobal(nil)
}

// SnapshotGlobal saves current process-wide notifier.
// Returned func puts it back and closes whatever notifier was created in between.
func SnapshotGlobal() (restore func()) {
	global.mu.Lock()
	original := global.n
	global.mu.Unlock()

	return func() {
		global.mu.Lock()
		current := global.n
		global.n = original
		global.mu.Unlock()

		if current != nil && current != original {
			if err := current.Close(); err != nil {
				logrus.StandardLogger().Warnf("closing replaced global notifier: %v", err)
			}
		}
	}
}
