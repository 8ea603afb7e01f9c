package controller

import (
	"context"

	"github.com/drillforge/core/session"
)

// SaveAudioChunk forwards an opaque recorded audio blob to the Persistence
// Adapter for the active session. The Controller never interprets chunk
// contents; it treats audio chunks as opaque.
func (c *Controller) SaveAudioChunk(ctx context.Context, blob []byte, mimeType string) error {
	c.mu.Lock()
	sessionID := c.sessionID
	hasSession := c.log != nil
	c.mu.Unlock()

	if !hasSession {
		return session.ErrNoSession
	}
	return c.store.SaveAudioChunk(ctx, sessionID, blob, mimeType)
}
