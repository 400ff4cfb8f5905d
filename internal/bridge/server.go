package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"ribosim/internal/catalog"
	"ribosim/internal/config"
	"ribosim/internal/logging"
	"ribosim/internal/sequence"
	"ribosim/internal/services"
	"ribosim/internal/workflow"
)

// Driver is the part of workflow.Driver the bridge needs.
type Driver interface {
	Submit(ev workflow.Event) error
	Snapshot() workflow.Snapshot
}

// Server exposes the hub over HTTP.
type Server struct {
	bind    string
	origins []string
	hub     *Hub
	driver  Driver
	catalog *catalog.Catalog
	logger  *slog.Logger

	upgrader websocket.Upgrader
	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// NewServer wires routes. cat may be nil, in which case resets are not
// checked against the catalog.
func NewServer(cfg *config.Config, hub *Hub, driver Driver, cat *catalog.Catalog, logger *slog.Logger) *Server {
	s := &Server{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		origins: cfg.Bridge.Origins,
		hub:     hub,
		driver:  driver,
		catalog: cat,
		logger:  logging.NewComponentLogger(logger, "bridge"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	r := mux.NewRouter()
	r.Use(s.requestID)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/proteins", s.handleProteins).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvent).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	s.router = r

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "bridge", "listen", s.bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("bridge listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "bridge_listening"),
	)
	return nil
}

// Addr is the bound address, available after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port is the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.origins) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.origins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log(r).Info("websocket upgrade failed", logging.Error(err))
		return
	}
	c := newConn(ws, s.hub.clientBuffer, s.logger)
	if raw, err := encode(TypeSnapshot, s.hub.seq.Load(), s.driver.Snapshot()); err == nil {
		c.send <- raw
	}
	if !s.hub.add(c) {
		_ = ws.Close()
		return
	}
	go c.writePump()
	go c.readPump(s.hub, s.dispatch)
}

// dispatch routes one inbound message.
func (s *Server) dispatch(msg Inbound) error {
	if msg.Type == TypeRendered {
		symbols, err := sequence.Parse(msg.Symbols)
		if err != nil {
			return services.Wrap(services.ErrValidation, "bridge", "rendered", "parse symbols", err)
		}
		s.hub.ReportRendered(symbols, msg.Generation)
		return nil
	}
	if msg.Type == TypeReset && msg.Protein != "" && s.catalog != nil {
		if _, err := s.catalog.Lookup(msg.Protein); err != nil {
			return err
		}
	}
	ev, err := msg.Event()
	if err != nil {
		return err
	}
	return s.driver.Submit(ev)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var msg Inbound
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&msg); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid message: %v", err))
		return
	}
	if err := s.dispatch(msg); err != nil {
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "type": msg.Type})
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Snapshot workflow.Snapshot `json:"snapshot"`
	Clients  int               `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Snapshot: s.driver.Snapshot(),
		Clients:  s.hub.Clients(),
	})
}

func (s *Server) handleProteins(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		s.writeJSON(w, http.StatusOK, []ProteinInfo{})
		return
	}
	s.writeJSON(w, http.StatusOK, ProteinInfos(s.catalog))
}

// ProteinInfos converts the catalog for the wire.
func ProteinInfos(c *catalog.Catalog) []ProteinInfo {
	def := c.Default().Key
	proteins := c.Proteins()
	out := make([]ProteinInfo, 0, len(proteins))
	for _, p := range proteins {
		chain := make([]string, len(p.Chain))
		for i, aa := range p.Chain {
			chain[i] = string(aa)
		}
		out = append(out, ProteinInfo{
			Name:        p.Name,
			Description: p.Description,
			Template:    p.TemplateString(),
			MRNA:        p.MRNAString(),
			Chain:       chain,
			Default:     p.Key == def,
		})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) log(r *http.Request) *slog.Logger {
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		return s.logger.With(logging.String(logging.FieldCorrelationID, id))
	}
	return s.logger
}
