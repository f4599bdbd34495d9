package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/virtuals-lab/leaguescout/internal/platform/logging"
)

// Server exposes worker state over HTTP while a run is in flight.
type Server struct {
	board  *Board
	logger *logging.Logger
	srv    *http.Server
}

func NewServer(addr string, board *Board, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{board: board, logger: logger}

	mux := http.NewServeMux()
	// Go 1.21 ServeMux has no method patterns; requireGet mirrors the
	// "GET /path" behavior of the 1.22+ mux (GET/HEAD pass, others 405).
	mux.HandleFunc("/healthz", requireGet(s.handleHealth))
	mux.HandleFunc("/v1/leagues", requireGet(s.handleLeagues))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func requireGet(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeagues(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"leagues": s.board.Statuses(),
	})
}

func (s *Server) writeJSON(ctx context.Context, w http.ResponseWriter, code int, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "status response encode failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
