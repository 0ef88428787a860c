package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/model"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/usecase"
)

// HandoffAPI is the slice of the service the transport binds. Satisfied by
// *usecase.HandoffService; mocked in handler tests.
type HandoffAPI interface {
	RequestHandoff(ctx context.Context, input usecase.RequestHandoffInput) (*model.Handoff, error)
	CaptureContact(ctx context.Context, email, message, note string) (*model.Handoff, error)
	ListPending(ctx context.Context, limit int) ([]model.Handoff, error)
	PickUp(ctx context.Context, handoffID, agentID string) (*model.Handoff, error)
	Expire(ctx context.Context, handoffID string) (*model.Handoff, error)
	SendMessage(ctx context.Context, handoffID string, senderKind model.SenderKind, senderID, content string) (*model.HandoffMessage, error)
	GetSnapshot(ctx context.Context, handoffID string, sinceSeq int64, limit int) (*usecase.Snapshot, error)
	Resolve(ctx context.Context, handoffID, resolvedBy string) (*model.Handoff, error)
	RegisterAgent(ctx context.Context, input usecase.RegisterAgentInput) (*model.Agent, error)
	SetAvailability(ctx context.Context, agentID string, state model.AgentAvailability) (*model.Agent, error)
	GetAgent(ctx context.Context, agentID string) (*model.Agent, error)
}

// Server binds the public operations to HTTP. Each route is one operation;
// tenant scoping comes from the X-Tenant-ID header the auth layer sets.
type Server struct {
	httpServer *http.Server
	service    HandoffAPI
	logger     *zap.Logger
}

// NewServer creates the API server on the given port.
func NewServer(port string, service HandoffAPI, logger *zap.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/handoffs", chain(s.handleRequestHandoff))
	mux.HandleFunc("GET /v1/handoffs", chain(s.handleListPending))
	mux.HandleFunc("POST /v1/handoffs/{id}/pickup", chain(s.handlePickUp))
	mux.HandleFunc("POST /v1/handoffs/{id}/messages", chain(s.handleSendMessage))
	mux.HandleFunc("POST /v1/handoffs/{id}/resolve", chain(s.handleResolve))
	mux.HandleFunc("POST /v1/handoffs/{id}/expire", chain(s.handleExpire))
	mux.HandleFunc("GET /v1/handoffs/{id}/snapshot", chain(s.handleGetSnapshot))
	mux.HandleFunc("POST /v1/agents", chain(s.handleRegisterAgent))
	mux.HandleFunc("GET /v1/agents/{id}", chain(s.handleGetAgent))
	mux.HandleFunc("POST /v1/agents/{id}/availability", chain(s.handleSetAvailability))
	mux.HandleFunc("POST /v1/contact-capture", chain(s.handleCaptureContact))
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.httpServer.Shutdown(ctx)
}
