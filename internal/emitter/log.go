package emitter

import (
	"log/slog"
	"sync"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

// LogIndicator is a camerarender.Indicator that only logs.
type LogIndicator struct {
	mu        sync.Mutex
	active    bool
	sessionID string
}

var (
	_ camerarender.Indicator       = (*LogIndicator)(nil)
	_ camerarender.SessionObserver = (*LogIndicator)(nil)
)

// SessionChanged records the current session id.
func (l *LogIndicator) SessionChanged(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sessionID != "" {
		l.sessionID = sessionID
	}
}

// SetActive logs the indicator state.
func (l *LogIndicator) SetActive(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active = active
	slog.Info("emitter: recording indicator",
		"active", active,
		"session_id", l.sessionID,
	)
	if !active {
		l.sessionID = ""
	}
}

// Active reports the last state set.
func (l *LogIndicator) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
