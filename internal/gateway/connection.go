package gateway

import (
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/porterhq/porter-core/internal/event"
	"github.com/porterhq/porter-core/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Devices connect from the local network, not browsers.
		return true
	},
}

// deviceConn is one live device connection.
type deviceConn struct {
	ws *websocket.Conn

	mu       sync.Mutex
	identity Identity // "" until a valid init frame binds it

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *deviceConn) getIdentity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *deviceConn) setIdentity(id Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// writeText sends one text frame. Serialized because gorilla allows only
// one concurrent writer per connection.
func (c *deviceConn) writeText(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	//nolint:errcheck // Best-effort deadline; write error caught below
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// connTable maps identities to their live connection.
type connTable struct {
	mu    sync.RWMutex
	conns map[Identity]*deviceConn
}

func newConnTable() *connTable {
	return &connTable{conns: make(map[Identity]*deviceConn)}
}

func (t *connTable) get(id Identity) *deviceConn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conns[id]
}

// bind installs c as the live connection for id and returns the
// connection it superseded, if any.
func (t *connTable) bind(id Identity, c *deviceConn) *deviceConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.conns[id]
	t.conns[id] = c
	return old
}

// unbind removes c's mapping only if c is still the live connection, so a
// stale connection's teardown never undoes a newer registration.
func (t *connTable) unbind(id Identity, c *deviceConn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[id] != c {
		return false
	}
	delete(t.conns, id)
	return true
}

func (t *connTable) all() []*deviceConn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*deviceConn, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	return out
}

// handleWS upgrades the HTTP connection and runs the device read loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &deviceConn{ws: ws}
	s.logger.Debug("device connection opened", "remote", ws.RemoteAddr().String())

	go s.readLoop(c)
}

// readLoop reads frames until the connection dies. Every frame is handled
// on its own goroutine so a slow handler never stalls subsequent reads.
func (s *Server) readLoop(c *deviceConn) {
	defer s.disconnect(c, "read loop ended")

	pingInterval := time.Duration(s.cfg.PingInterval) * time.Second
	pongWait := time.Duration(s.cfg.PongTimeout) * time.Second
	deadline := pingInterval + pongWait

	c.ws.SetReadLimit(int64(s.cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	go s.pingLoop(c, pingInterval)

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("device read error", "device", c.getIdentity(), "error", err)
			} else {
				s.logger.Debug("device connection closed", "device", c.getIdentity())
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.ws.SetReadDeadline(time.Now().Add(deadline))

		go s.handleFrame(c, msgType, data)
	}
}

// pingLoop keeps the connection alive; devices answer with pongs that
// reset the read deadline.
func (s *Server) pingLoop(c *deviceConn, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		c.writeMu.Lock()
		//nolint:errcheck // Best-effort deadline; ping error caught below
		c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		err := c.ws.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleFrame routes one inbound frame: structured text frames become
// typed bus events, raw binary frames become their prefix-selected event.
// Protocol violations drop the frame and leave the connection open.
func (s *Server) handleFrame(c *deviceConn, msgType int, data []byte) {
	switch msgType {
	case websocket.TextMessage:
		s.handleStructured(c, data)
	case websocket.BinaryMessage:
		s.handleRaw(c, data)
	default:
	}
}

func (s *Server) handleStructured(c *deviceConn, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Warn("malformed frame dropped", "device", c.getIdentity(), "error", err)
		return
	}

	if frame.EventType == string(event.TypeInit) {
		s.register(c, frame)
		return
	}

	identity := c.getIdentity()
	if identity == "" {
		// Frames are inert until a valid init arrives.
		s.logger.Warn("frame from unregistered connection dropped",
			"event_type", frame.EventType,
		)
		return
	}

	t, err := event.ParseType(frame.EventType)
	if err != nil {
		s.logger.Warn("unknown event type dropped",
			"device", identity,
			"event_type", frame.EventType,
		)
		return
	}

	payload := make(map[string]any, len(frame.Data)+1)
	maps.Copy(payload, frame.Data)
	payload["device"] = string(identity)

	s.bus.Enqueue(event.New(t, event.OriginDevice, payload))
}

func (s *Server) handleRaw(c *deviceConn, data []byte) {
	identity := c.getIdentity()
	if identity == "" {
		s.logger.Warn("raw frame from unregistered connection dropped")
		return
	}

	t, payload, ok := parseRawFrame(data)
	if !ok {
		s.logger.Warn("raw frame with unknown prefix dropped", "device", identity)
		return
	}

	s.bus.Enqueue(event.New(t, event.OriginDevice, map[string]any{
		"device": string(identity),
		"data":   payload,
	}))
}

// register binds the connection to the identity named in an init frame
// and flips that device's connectivity. A later registration supersedes
// an earlier one; the superseded connection is closed.
func (s *Server) register(c *deviceConn, frame Frame) {
	name, _ := frame.Data["device"].(string)
	identity, err := ParseIdentity(name)
	if err != nil {
		s.logger.Warn("init with unknown identity dropped", "device", name)
		return
	}

	// A connection re-initializing under a new identity must release the
	// old one, or the stale table entry keeps routing to this conn after
	// disconnect only unbinds the current identity.
	if prev := c.getIdentity(); prev != "" && prev != identity {
		if s.conns.unbind(prev, c) {
			if err := s.store.SetBool(connectivityField(prev), false); err != nil {
				s.logger.Error("connectivity update failed", "device", prev, "error", err)
			}
			s.logger.Info("device identity rebound", "from", prev, "to", identity)
		}
	}

	c.setIdentity(identity)
	old := s.conns.bind(identity, c)
	if old != nil && old != c {
		s.logger.Info("device reconnected, superseding previous connection",
			"device", identity,
		)
		old.closeOnce.Do(func() {
			//nolint:errcheck // Superseded connection, close is best-effort
			old.ws.Close()
		})
	}

	if err := s.store.SetBool(connectivityField(identity), true); err != nil {
		s.logger.Error("connectivity update failed", "device", identity, "error", err)
	}

	s.logger.Info("device registered", "device", identity)
}

// disconnect tears a connection down exactly once: close the transport,
// unbind the identity, flip connectivity. A superseded connection skips
// the state side effects because it no longer owns the mapping.
func (s *Server) disconnect(c *deviceConn, reason string) {
	c.closeOnce.Do(func() {
		//nolint:errcheck // Connection is going away regardless
		c.ws.Close()

		identity := c.getIdentity()
		if identity == "" {
			return
		}
		if !s.conns.unbind(identity, c) {
			return
		}

		if err := s.store.SetBool(connectivityField(identity), false); err != nil {
			s.logger.Error("connectivity update failed", "device", identity, "error", err)
		}
		s.logger.Info("device disconnected", "device", identity, "reason", reason)
	})
}

func connectivityField(id Identity) state.Field {
	if id == IdentityCamera {
		return state.FieldCameraConnected
	}
	return state.FieldControllerConnected
}
