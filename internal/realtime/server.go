// Package realtime pushes recognition status to dashboard clients over
// WebSocket and exposes a small REST surface for one-shot queries.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"facemirror/internal/bridge"
	"facemirror/internal/logging"
	"facemirror/internal/metrics"
	"facemirror/internal/profile"
	"facemirror/internal/protocol"
	"facemirror/internal/status"
	"facemirror/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	historyCapacity = 200
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mirror and server share the host
	},
}

// Server fans status updates out to connected mirror clients. It also
// implements view.Renderer so the presentation state machine drives the
// scene and overlay messages directly.
type Server struct {
	bridge     *bridge.Bridge
	profiles   *profile.Library
	staticDir  string
	debugPanel bool

	clients   map[*client]bool
	clientsMu sync.RWMutex

	// snapshots sent to late-joining clients
	snapMu      sync.Mutex
	lastStatus  *protocol.RecognitionStatusPayload
	lastScene   *protocol.SceneUpdatePayload
	lastOverlay *protocol.OverlayUpdatePayload

	history *History
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// Config holds the server's wiring options.
type Config struct {
	StaticDir  string
	DebugPanel bool
}

// New creates a realtime server.
func New(br *bridge.Bridge, profiles *profile.Library, cfg Config) *Server {
	return &Server{
		bridge:     br,
		profiles:   profiles,
		staticDir:  cfg.StaticDir,
		debugPanel: cfg.DebugPanel,
		clients:    make(map[*client]bool),
		history:    NewHistory(historyCapacity),
	}
}

// Handler returns the HTTP handler with all routes configured.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleGetStatus)
		r.Get("/profiles", s.handleGetProfiles)
		r.Get("/history", s.handleGetHistory)
		r.Post("/recognition/start", s.handleStartRecognition)
		r.Post("/recognition/stop", s.handleStopRecognition)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if s.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// OnStatus is the bridge's update callback: record the event and push it
// to every connected client.
func (s *Server) OnStatus(rec status.Record, imagePath string) {
	if !s.debugPanel {
		rec = rec.StripDebug()
	}
	payload := protocol.RecognitionStatusPayload{Status: rec, ImagePath: imagePath}

	s.snapMu.Lock()
	s.lastStatus = &payload
	s.snapMu.Unlock()

	s.history.Write(StatusEvent{
		Status:     rec,
		ImagePath:  imagePath,
		ReceivedAt: time.Now().UTC(),
	})

	s.broadcast(protocol.TypeRecognitionStatus, payload)
}

// RenderScene implements view.Renderer.
func (s *Server) RenderScene(scene view.Scene) {
	payload := protocol.SceneUpdatePayload{Scene: scene}

	s.snapMu.Lock()
	s.lastScene = &payload
	s.snapMu.Unlock()

	s.broadcast(protocol.TypeSceneUpdate, payload)
}

// RenderOverlay implements view.Renderer.
func (s *Server) RenderOverlay(phase view.OverlayPhase, opacity float64) {
	payload := protocol.OverlayUpdatePayload{Phase: phase, Opacity: opacity}

	s.snapMu.Lock()
	s.lastOverlay = &payload
	s.snapMu.Unlock()

	s.broadcast(protocol.TypeOverlayUpdate, payload)
}

// handleWebSocket upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, 64),
		server: s,
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	n := len(s.clients)
	s.clientsMu.Unlock()
	metrics.SetWSClientsActive(n)

	logging.Debug("client connected", zap.String("client", c.id))

	// Bring the new client up to date before any live updates arrive.
	s.sendSnapshot(c)

	go c.writePump()
	go c.readPump()
}

// sendSnapshot sends the current status, scene, and overlay state to a
// newly connected client.
func (s *Server) sendSnapshot(c *client) {
	s.snapMu.Lock()
	lastStatus, lastScene, lastOverlay := s.lastStatus, s.lastScene, s.lastOverlay
	s.snapMu.Unlock()

	if lastStatus != nil {
		s.sendTo(c, protocol.TypeRecognitionStatus, *lastStatus)
	}
	if lastScene != nil {
		s.sendTo(c, protocol.TypeSceneUpdate, *lastScene)
	}
	if lastOverlay != nil {
		s.sendTo(c, protocol.TypeOverlayUpdate, *lastOverlay)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		c.server.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// removeClient cleans up a disconnected client.
func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c)
	n := len(s.clients)
	s.clientsMu.Unlock()
	metrics.SetWSClientsActive(n)

	close(c.send)
	logging.Debug("client disconnected", zap.String("client", c.id))
}

// handleMessage processes a validated client message.
func (s *Server) handleMessage(c *client, raw []byte) {
	msg, err := protocol.ValidateClientMessage(raw)
	if err != nil {
		s.sendError(c, protocol.ErrInvalidMessage, err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeRecognitionStart:
		var payload protocol.RecognitionStartPayload
		if msg.Payload != nil {
			json.Unmarshal(msg.Payload, &payload)
		}
		s.bridge.Start(time.Duration(payload.IntervalMs) * time.Millisecond)

	case protocol.TypeRecognitionStop:
		s.bridge.Stop()

	case protocol.TypeProfilesGet:
		profiles, err := s.profiles.Scan()
		if err != nil {
			logging.Warn("profile scan failed", zap.Error(err))
		}
		s.sendTo(c, protocol.TypeProfilesList, protocol.ProfilesListPayload{Profiles: profiles})

	case protocol.TypeStatusGet:
		s.snapMu.Lock()
		last := s.lastStatus
		s.snapMu.Unlock()

		if last == nil {
			rec, imagePath, ok := s.bridge.Current()
			if !ok {
				s.sendError(c, protocol.ErrNoStatus, "no status received yet")
				return
			}
			if !s.debugPanel {
				rec = rec.StripDebug()
			}
			last = &protocol.RecognitionStatusPayload{Status: rec, ImagePath: imagePath}
		}
		s.sendTo(c, protocol.TypeRecognitionStatus, *last)
	}
}

// broadcast sends a message to all connected clients. Slow clients are
// skipped rather than blocked on.
func (s *Server) broadcast(msgType string, payload interface{}) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	metrics.RecordBroadcast(msgType)

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, skip.
		}
	}
}

func (s *Server) sendTo(c *client, msgType string, payload interface{}) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return
	}
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

func (s *Server) sendError(c *client, code, message string) {
	msg, _ := protocol.NewErrorMessage(code, message)
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}
