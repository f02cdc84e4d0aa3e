package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/usecase"
	"github.com/AlexSolari/botFramework-sub000/internal/eventbus"
	"github.com/AlexSolari/botFramework-sub000/internal/service"
)

const eventBufferSize = 200

// Server exposes a read-only HTTP endpoint for inspecting the running
// dispatcher: registered actions, state documents, queue depth and recent
// bus traffic.
type Server struct {
	processor *service.Processor
	store     *usecase.StateStore
	queue     *service.DeliveryQueue
	log       zerolog.Logger

	eventsMu sync.Mutex
	events   []eventRecord

	server *http.Server
	addr   string
}

type eventRecord struct {
	Kind          string         `json:"kind"`
	CorrelationID string         `json:"correlation_id"`
	Action        string         `json:"action,omitempty"`
	Tenant        string         `json:"tenant,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	At            time.Time      `json:"at"`
}

// NewServer creates a debug server and subscribes to the bus, keeping a
// bounded buffer of recent events.
func NewServer(processor *service.Processor, store *usecase.StateStore, queue *service.DeliveryQueue, bus *eventbus.Bus, addr string, log zerolog.Logger) *Server {
	s := &Server{
		processor: processor,
		store:     store,
		queue:     queue,
		log:       log.With().Str("component", "debugapi").Logger(),
		addr:      addr,
	}

	bus.SubscribeAll(func(e eventbus.Event) {
		s.eventsMu.Lock()
		defer s.eventsMu.Unlock()
		s.events = append(s.events, eventRecord{
			Kind:          string(e.Kind),
			CorrelationID: e.CorrelationID,
			Action:        e.Action,
			Tenant:        e.Tenant,
			Detail:        e.Detail,
			At:            e.At,
		})
		if len(s.events) > eventBufferSize {
			s.events = s.events[len(s.events)-eventBufferSize:]
		}
	})

	return s
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/actions", s.handleActions)
	mux.HandleFunc("/debug/state/", s.handleState)
	mux.HandleFunc("/debug/queue", s.handleQueue)
	mux.HandleFunc("/debug/events", s.handleEvents)

	s.server = &http.Server{Addr: s.addr, Handler: mux}
	s.log.Info().Str("addr", s.addr).Msg("debug api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debug api: %w", err)
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.processor.Descriptors())
}

// handleState serves /debug/state/{actionKey}: the frozen document for one
// action key.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	actionKey := strings.TrimPrefix(r.URL.Path, "/debug/state/")
	if actionKey == "" {
		http.Error(w, "missing action key", http.StatusBadRequest)
		return
	}

	doc, err := s.store.LoadAll(r.Context(), actionKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, doc)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"pending": s.queue.Len()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.eventsMu.Lock()
	events := append([]eventRecord(nil), s.events...)
	s.eventsMu.Unlock()
	writeJSON(w, events)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
