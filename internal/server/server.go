// Package server serves the web UI and the websocket API. Clients receive
// light, pattern and schedule updates and send commands that a
// CommandHandler turns into agent work.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"hue-toys/internal/scheduler"
)

// CommandHandler defines the interface for handling client commands.
type CommandHandler interface {
	Handle(msg Message, hub *Hub)
}

// Status provides what a freshly connected client is sent.
type Status interface {
	Lights(ctx context.Context) ([]LightInfo, error)
	Patterns() ([]string, error)
	RunningPattern() string
	Schedules() map[cron.EntryID]scheduler.ScheduleEntry
}

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub        *Hub
	handler    CommandHandler
	status     Status
	httpServer *http.Server
	stopHub    context.CancelFunc

	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance and starts its hub.
func NewServer(status Status, port string, staticFilesDir string, allowedOrigins []string) *Server {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	s := &Server{
		Hub:            hub,
		status:         status,
		stopHub:        cancel,
		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				log.Warn("[Server] WebSocket CheckOrigin is disabled.")
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			log.Printf("[Server] WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
			return false
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.staticFilesDir)))
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	return s
}

// SetHandler sets the command handler. Commands received before are
// dropped.
func (s *Server) SetHandler(h CommandHandler) {
	s.handler = h
}

// Handler returns the HTTP handler, for use with a custom listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and closes every websocket session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.stopHub()
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(conn)
	go client.writePump()

	for _, msg := range s.initialMessages(r.Context(), client.ID) {
		client.send <- msg
	}

	if !s.Hub.join(client) {
		close(client.send)
		return
	}
	defer s.Hub.leave(client)

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if s.handler != nil {
			s.handler.Handle(Message{Raw: msgBytes, Session: client.ID}, s.Hub)
		}
	}
}

func (s *Server) initialMessages(ctx context.Context, session string) []Message {
	msgs := []Message{NewMessage("hello", map[string]string{"session": session})}
	if s.status == nil {
		return msgs
	}

	lights, err := s.status.Lights(ctx)
	if err != nil {
		log.WithError(err).Warn("[Server] Could not read lights for new client")
	}
	if lights == nil {
		lights = []LightInfo{}
	}
	msgs = append(msgs, NewMessage("light_list", lights))

	if patterns, err := s.status.Patterns(); err == nil {
		msgs = append(msgs, NewMessage("pattern_list", patterns))
	}
	msgs = append(msgs,
		NewMessage("pattern_status", map[string]string{"running": s.status.RunningPattern()}),
		NewMessage("schedule_list", s.status.Schedules()),
	)
	return msgs
}
