package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/heraklist/evochia-ops/internal/config"
	"github.com/heraklist/evochia-ops/internal/loader"
	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/sourcing"
	"github.com/heraklist/evochia-ops/internal/store"
)

// maxBodyBytes bounds request documents accepted by the API.
const maxBodyBytes = 32 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sourcing and costing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st := openHistory(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(cfg, st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// api serves the HTTP endpoints over one config and optional history store.
type api struct {
	cfg *config.Config
	st  store.Store
}

// newRouter builds the API handler. A nil store disables run history.
func newRouter(c *config.Config, st store.Store) http.Handler {
	a := &api{cfg: c, st: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(c.Server.RateLimitRPS, c.Server.RateLimitBurst))
		r.Post("/optimize", a.handleOptimize)
		r.Post("/compare", a.handleCompare)
		r.Post("/cost", a.handleCost)
	})
	return r
}

// rateLimit rejects requests above rps with 429. A non-positive rps disables
// limiting.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sourcingBody is the request document of /v1/optimize and /v1/compare.
type sourcingBody struct {
	Offers    []model.Offer      `json:"offers"`
	Policies  []model.PolicyRule `json:"policies"`
	Overrides []model.PolicyRule `json:"overrides"`
	runOverrides
}

// costBody is the request document of /v1/cost. Exactly one of Recipe and
// Recipes is expected; Recipes selects batch costing.
type costBody struct {
	Recipe    *model.Recipe    `json:"recipe"`
	Recipes   []model.Recipe   `json:"recipes"`
	Offers    []model.Offer    `json:"offers"`
	Decisions []model.Decision `json:"decisions"`
	runOverrides
}

func (a *api) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var body sourcingBody
	if !decodeBody(w, r, &body) {
		return
	}
	opts, now, ok := a.sourcingInputs(w, body.runOverrides)
	if !ok {
		return
	}

	rec := startRun(r.Context(), a.st, model.RunKindOptimize, "")
	res := sourcing.Optimize(body.Offers, mergeRules(body), opts, now)
	summary := sourcing.Summarize(res)
	rec.complete(r.Context(), model.RunStatusComplete, summary)

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    rec.ID(),
		"decisions": res.Decisions,
		"issues":    res.Issues,
		"summary":   summary,
	})
}

func (a *api) handleCompare(w http.ResponseWriter, r *http.Request) {
	var body sourcingBody
	if !decodeBody(w, r, &body) {
		return
	}
	opts, now, ok := a.sourcingInputs(w, body.runOverrides)
	if !ok {
		return
	}

	rec := startRun(r.Context(), a.st, model.RunKindCompare, "")
	res, err := compareModes(r.Context(), body.Offers, mergeRules(body), opts, now)
	if err != nil {
		rec.fail(r.Context(), err)
		zap.L().Error("compare failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rec.complete(r.Context(), model.RunStatusComplete, res.Report)

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      rec.ID(),
		"report":      res.Report,
		"on_summary":  sourcing.Summarize(res.On),
		"off_summary": sourcing.Summarize(res.Off),
	})
}

func (a *api) handleCost(w http.ResponseWriter, r *http.Request) {
	var body costBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Recipe == nil && len(body.Recipes) == 0 {
		writeError(w, http.StatusBadRequest, "recipe or recipes is required")
		return
	}
	calc, err := newCalculator(a.cfg, body.runOverrides)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now, err := runClock(body.Now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	req := costRequest(body.Offers, body.Decisions, body.ConfirmStale, now)
	rec := startRun(ctx, a.st, model.RunKindCost, "")

	if body.Recipe == nil {
		res, err := calc.CostBatch(ctx, body.Recipes, req, a.cfg.Batch.MaxConcurrentRecipes)
		if err != nil {
			rec.fail(ctx, err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rec.complete(ctx, runStatusFor(res.Summary.Status == model.StatusBlocked), res.Summary)
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id":  rec.ID(),
			"costs":   res.Costs,
			"issues":  res.Issues,
			"summary": res.Summary,
		})
		return
	}

	cb, issues := calc.Cost(*body.Recipe, req)
	issues = nonNilIssues(issues)
	summary := summarizeCost(cb, issues)
	rec.complete(ctx, runStatusFor(cb.Blocked()), summary)
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":         rec.ID(),
		"cost_breakdown": cb,
		"issues":         issues,
		"summary":        summary,
	})
}

func (a *api) sourcingInputs(w http.ResponseWriter, o runOverrides) (sourcing.Options, time.Time, bool) {
	opts, err := sourcingOptions(a.cfg, o)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return sourcing.Options{}, time.Time{}, false
	}
	now, err := runClock(o.Now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return sourcing.Options{}, time.Time{}, false
	}
	return opts, now, true
}

func mergeRules(body sourcingBody) []model.PolicyRule {
	return loader.MergePolicies(body.Overrides, body.Policies)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
