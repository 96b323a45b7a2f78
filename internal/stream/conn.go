package stream

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// streamPath is the server's dashboard event endpoint.
const streamPath = "/api/dashboard/stream"

// Conn owns the push-connection lifecycle: connect, detect failure,
// reconnect after a fixed delay, forever. It never interprets payloads;
// every frame is handed verbatim to the handler.
type Conn struct {
	url    string
	delay  time.Duration
	client *http.Client
	handle func(frame []byte)
	store  *Store
	log    *zerolog.Logger

	mu        sync.Mutex
	connected bool
	onState   func(connected bool)
}

// newConn builds a connection manager for the given base server URL.
func newConn(serverURL string, delay time.Duration, store *Store, handle func([]byte), logger *zerolog.Logger) *Conn {
	return &Conn{
		url:    serverURL + streamPath,
		delay:  delay,
		client: &http.Client{},
		handle: handle,
		store:  store,
		log:    logger,
	}
}

// Connected reports current connectivity.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// OnConnectivity registers the connectivity observer. Only the UI shell is
// expected to call this; registering replaces any previous observer.
func (c *Conn) OnConnectivity(fn func(connected bool)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Run drives the connect/read/reconnect loop until ctx is cancelled.
// Reconnection is unconditional: there is no backoff growth and no giving up.
func (c *Conn) Run(ctx context.Context) error {
	for {
		c.attempt(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
	}
}

// attempt opens one transport and consumes it until it fails. The response
// body is closed before attempt returns, so at most one transport is ever
// live.
func (c *Conn) attempt(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.setConnected(false)
		c.log.Error().Err(err).Msg("build stream request")
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		c.setConnected(false)
		c.log.Debug().Err(err).Msg("stream connect failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setConnected(false)
		c.log.Warn().Int("status", resp.StatusCode).Msg("stream endpoint refused")
		return
	}

	c.setConnected(true)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		// Some server builds append a NUL hint byte to each frame.
		data = strings.TrimSuffix(data, "\x00")
		if data == "" {
			continue
		}

		c.handle([]byte(data))
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.log.Debug().Err(err).Msg("stream read failed")
	}
	c.setConnected(false)
}

// setConnected updates connectivity, emitting the domain log line only on a
// transition.
func (c *Conn) setConnected(connected bool) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	fn := c.onState
	c.mu.Unlock()

	if !changed {
		return
	}

	if connected {
		c.store.Log("Connected to the server")
		c.log.Info().Msg("connected to event stream")
	} else {
		c.store.Log("Disconnected from server")
		c.log.Warn().Msg("disconnected from event stream")
	}

	if fn != nil {
		fn(connected)
	}
}
