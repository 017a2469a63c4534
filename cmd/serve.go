package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/reconcile-cli/internal/compare"
	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/normalize"
	"github.com/sells-group/reconcile-cli/internal/report"
	"github.com/sells-group/reconcile-cli/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newAPI(cfg, st).routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// compareRequest is the body of POST /v1/comparisons. Both lists are
// required but may be empty.
type compareRequest struct {
	A     []model.RawPeriod `json:"a" validate:"required,max=5000"`
	B     []model.RawPeriod `json:"b" validate:"required,max=5000"`
	AsOf  string            `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Save  bool              `json:"save"`
	Label string            `json:"label" validate:"max=200"`
}

// api serves comparisons over HTTP. Engines are built per request and
// share one bounded normalization cache.
type api struct {
	cfg       *config.Config
	store     store.Store
	validator *validator.Validate
	cache     *normalize.Cache
	now       func() time.Time
}

func newAPI(c *config.Config, st store.Store) *api {
	return &api{
		cfg:       c,
		store:     st,
		validator: validator.New(),
		cache:     normalize.NewCacheSize(c.Server.CacheEntries),
		now:       time.Now,
	}
}

func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Location"},
		MaxAge:         300,
	}))

	r.Get("/health", a.handleHealth)

	r.Route("/v1/comparisons", func(r chi.Router) {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(a.cfg.Server.RequestsPerSec), a.cfg.Server.Burst)))
		r.Post("/", a.handleCompare)
		r.Get("/", a.handleList)
		r.Get("/{id}", a.handleGet)
	})
	return r
}

// rateLimit rejects requests once the shared token bucket is empty.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
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

func (a *api) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleCompare(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Server.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.cfg.Server.MaxBodyBytes)
	}

	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	now := a.now()
	asOf, err := parseAsOf(req.AsOf, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	engine, err := compare.New(a.cfg.Compare, compare.Options{AsOf: asOf, ReferenceYear: now.Year(), Cache: a.cache})
	if err != nil {
		zap.L().Error("build engine failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "invalid comparison settings")
		return
	}
	result, err := engine.Compare(req.A, req.B)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !req.Save {
		writeJSON(w, http.StatusOK, result)
		return
	}
	saved, err := a.store.SaveComparison(r.Context(), model.Comparison{
		Label:  req.Label,
		AsOf:   asOf.Format(dateLayout),
		Result: result,
	})
	if err != nil {
		zap.L().Error("save comparison failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save comparison")
		return
	}
	zap.L().Info("comparison saved",
		zap.String("id", saved.ID),
		zap.Int("matched", result.Summary.Matched),
	)
	w.Header().Set("Location", "/v1/comparisons/"+saved.ID)
	writeJSON(w, http.StatusCreated, result)
}

func (a *api) handleList(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{Label: r.URL.Query().Get("label")}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a non-negative integer", name))
			return
		}
		*dst = n
	}

	list, err := a.store.ListComparisons(r.Context(), filter)
	if err != nil {
		zap.L().Error("list comparisons failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list comparisons")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparisons": list})
}

func (a *api) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := a.store.GetComparison(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "comparison not found")
		return
	}
	if err != nil {
		zap.L().Error("get comparison failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load comparison")
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, c)
	case "xlsx":
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="comparison-%s.xlsx"`, c.ID))
		if err := report.WriteXLSXTo(w, c.Result); err != nil {
			zap.L().Error("write xlsx failed", zap.String("id", id), zap.Error(err))
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := report.WriteCSV(w, c.Result); err != nil {
			zap.L().Error("write csv failed", zap.String("id", id), zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be json, csv or xlsx")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// validationMessage reports the first failed field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		ve := verrs[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
