package monitor

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ibt_platform/train/auth"
	"ibt_platform/train/registry"
	"ibt_platform/utils"
	"ibt_platform/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

// Server exposes the run's live status, its registry records, Prometheus
// metrics, and a token-protected stop endpoint that cancels the run context.
type Server struct {
	Tracker  *Tracker
	Registry *registry.Registry
	Jwt      *auth.JwtManager
	StopRun  context.CancelFunc
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.GetStatus)
		r.Get("/runs/{run_id}/phases", s.ListPhases)
		r.Get("/runs/{run_id}/skips", s.ListSkips)

		r.Group(func(r chi.Router) {
			r.Use(s.Jwt.Verifier())
			r.Use(s.Jwt.Authenticator())

			r.Post("/stop", s.Stop)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	utils.WriteJsonResponse(w, s.Tracker.Snapshot())
}

type phaseResponse struct {
	Round      int     `json:"round"`
	Phase      string  `json:"phase"`
	Direction  string  `json:"direction"`
	Rows       int     `json:"rows"`
	DurationMs int64   `json:"duration_ms"`
	Epochs     int     `json:"epochs"`
	EvalLoss   float64 `json:"eval_loss"`
	EvalScore  float64 `json:"eval_score"`
}

func (s *Server) ListPhases(w http.ResponseWriter, r *http.Request) {
	phases, err := s.listPhases(r)
	if err != nil {
		http.Error(w, err.Error(), utils.ResponseCode(err))
		return
	}
	utils.WriteJsonResponse(w, phases)
}

func (s *Server) listPhases(r *http.Request) ([]phaseResponse, error) {
	runId, err := utils.URLParamUUID(r, "run_id")
	if err != nil {
		return nil, utils.CodedError(err, http.StatusBadRequest)
	}

	phases, err := s.Registry.ListPhases(runId)
	if err != nil {
		slog.Error("error listing phases", "run_id", runId, "error", err)
		return nil, utils.CodedError(err, http.StatusInternalServerError)
	}

	return lo.Map(phases, func(p registry.PhaseRecord, _ int) phaseResponse {
		return phaseResponse{
			Round:      p.Round,
			Phase:      p.Phase,
			Direction:  p.Direction,
			Rows:       p.Rows,
			DurationMs: p.DurationMs,
			Epochs:     p.Epochs,
			EvalLoss:   p.EvalLoss,
			EvalScore:  p.EvalScore,
		}
	}), nil
}

type skipResponse struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (s *Server) ListSkips(w http.ResponseWriter, r *http.Request) {
	skips, err := s.listSkips(r)
	if err != nil {
		http.Error(w, err.Error(), utils.ResponseCode(err))
		return
	}
	utils.WriteJsonResponse(w, skips)
}

func (s *Server) listSkips(r *http.Request) ([]skipResponse, error) {
	runId, err := utils.URLParamUUID(r, "run_id")
	if err != nil {
		return nil, utils.CodedError(err, http.StatusBadRequest)
	}

	skips, err := s.Registry.ListSkips(runId)
	if err != nil {
		slog.Error("error listing skips", "run_id", runId, "error", err)
		return nil, utils.CodedError(err, http.StatusInternalServerError)
	}

	return lo.Map(skips, func(rec registry.SkipRecord, _ int) skipResponse {
		return skipResponse{File: rec.File, Line: rec.Line, Reason: rec.Reason}
	}), nil
}

func (s *Server) Stop(w http.ResponseWriter, r *http.Request) {
	runId, err := auth.RunIdFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	slog.Info("stop requested", "run_id", runId, "code", logging.RUN_STATE)
	s.StopRun()

	utils.WriteSuccess(w)
}

// Serve runs the monitor server until the given context is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("monitor server shutdown", "error", err)
		}
	}()

	slog.Info("starting monitor server", "addr", addr)
	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
