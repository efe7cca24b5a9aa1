// Package registry manages the lifecycle of channel plugin instances. Each
// monitored account runs as its own instance, so entries are keyed by an
// account-qualified id rather than the bare channel name.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

// Registry tracks registered channel instances by key.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	channels map[string]pluginsdk.Channel
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("component", "channels"),
		channels: make(map[string]pluginsdk.Channel),
	}
}

// Key builds the registry key for a channel instance on an account.
func Key(channelName, accountID string) string {
	return channelName + ":" + accountID
}

// Register adds a channel instance under the given key, replacing any
// previous entry.
func (r *Registry) Register(key string, ch pluginsdk.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[key] = ch
	r.logger.Info("channel registered", "key", key, "name", ch.Name())
}

// StartAll starts every registered instance. One instance failing to start
// does not abort the others.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key, ch := range r.channels {
		r.logger.Info("starting channel", "key", key)
		if err := ch.Start(ctx); err != nil {
			r.logger.Error("channel start failed", "key", key, "error", err)
			continue
		}
		r.logger.Info("channel started", "key", key)
	}
	return nil
}

// StopAll stops every registered instance.
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key, ch := range r.channels {
		r.logger.Info("stopping channel", "key", key)
		if err := ch.Stop(); err != nil {
			r.logger.Error("channel stop error", "key", key, "error", err)
		}
	}
}

// Get returns a channel instance by key.
func (r *Registry) Get(key string) (pluginsdk.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[key]
	if !ok {
		return nil, fmt.Errorf("channel not found: %s", key)
	}
	return ch, nil
}

// Status returns the connection state of every instance.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]bool, len(r.channels))
	for key, ch := range r.channels {
		status[key] = ch.IsConnected()
	}
	return status
}
