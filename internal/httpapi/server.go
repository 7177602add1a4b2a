package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborview-health/voice-scheduler/internal/archive"
	"github.com/harborview-health/voice-scheduler/internal/dialog"
	"github.com/harborview-health/voice-scheduler/internal/oracle"
	"github.com/harborview-health/voice-scheduler/pkg/logging"
)

// TurnResponder processes one dialogue turn. *dialog.Engine satisfies it.
type TurnResponder interface {
	Respond(ctx context.Context, callID string, messages []oracle.ChatMessage, rawCallerPhone string) (*dialog.TurnResult, error)
}

// transcriptArchiver is the slice of the archive the server needs.
// *archive.TranscriptStore satisfies it, including as a nil pointer.
type transcriptArchiver interface {
	EnsureCall(ctx context.Context, callID, orgID, phone string) (uuid.UUID, error)
	AppendTurn(ctx context.Context, callID string, turn archive.TurnRecord) error
	EndCall(ctx context.Context, callID, finalIntent string, transferred bool) error
}

// Config configures the HTTP server.
type Config struct {
	CallIDHeader   string
	CallIDPath     string
	DefaultModel   string
	StreamEnabled  bool
	OrganizationID string
	RequestTimeout time.Duration
}

// Server exposes the OpenAI-compatible turn endpoint plus health and metrics.
type Server struct {
	engine  TurnResponder
	archive transcriptArchiver
	logger  *logging.Logger
	cfg     Config
	router  chi.Router
}

// NewServer wires the routes.
func NewServer(engine TurnResponder, transcripts *archive.TranscriptStore, cfg Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.CallIDHeader == "" {
		cfg.CallIDHeader = "x-call-id"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "voice-scheduler"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	s := &Server{
		engine:  engine,
		archive: transcripts,
		logger:  logger.WithComponent("httpapi"),
		cfg:     cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Post("/v1/chat/completions", s.handleChatCompletion)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
