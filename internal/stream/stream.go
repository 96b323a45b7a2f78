// Package stream implements the dashboard's event-stream reconciliation
// engine: a self-healing connection to the server's push feed, a
// deduplication window for at-least-once delivery, a projection store
// rebuilt one event at a time, and the outbound command layer with
// optimistic updates.
package stream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/0x7030676e31/mediaplayer/internal/config"
	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

// Engine owns the full pipeline: the connection manager feeds the dedup
// window, which feeds the reducer. UI components read projections through
// Store and act through Commands.
type Engine struct {
	Store    *Store
	Commands *Commands

	conn  *Conn
	dedup *DedupWindow
	log   *zerolog.Logger
}

// New wires an engine against the configured server.
func New(cfg config.Config, logger *zerolog.Logger) *Engine {
	store := NewStore(cfg.LogRetention, cfg.RenameNonceTTL, logger)

	e := &Engine{
		Store:    store,
		Commands: NewCommands(cfg.ServerURL, http.DefaultClient, store, logger),
		dedup:    NewDedupWindow(cfg.DedupWindow),
		log:      logger,
	}
	e.conn = newConn(cfg.ServerURL, cfg.ReconnectDelay, store, e.handleFrame, logger)
	return e
}

// Run blocks driving the connection loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	return e.conn.Run(ctx)
}

// Connected reports current stream connectivity.
func (e *Engine) Connected() bool {
	return e.conn.Connected()
}

// OnConnectivity registers the connectivity observer for the UI shell.
func (e *Engine) OnConnectivity(fn func(connected bool)) {
	e.conn.OnConnectivity(fn)
}

// OnActivity subscribes to client online/offline transitions; the returned
// function unsubscribes.
func (e *Engine) OnActivity(fn ActivityFunc) func() {
	return e.Store.OnActivity(fn)
}

// handleFrame admits one raw frame from the transport into the pipeline.
// Deduplication runs before any payload inspection, so a suppressed
// self-originated event still consumes its ack slot.
func (e *Engine) handleFrame(frame []byte) {
	var env proto.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		e.log.Warn().Err(err).Msg("malformed envelope")
		return
	}

	if !e.dedup.Admit(env.Ack) {
		e.log.Debug().Uint64("ack", env.Ack).Msg("duplicate envelope dropped")
		return
	}

	e.Store.Apply(env)
}
