package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/npt-backend/internal/models"
	"github.com/kjannette/npt-backend/internal/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var dateRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// maxBacktestDays bounds the range a single backtest request may load.
const maxBacktestDays = 366

type priceStore interface {
	GetByDay(ctx context.Context, zone models.Zone, day string) ([]models.PricePoint, error)
	GetRange(ctx context.Context, zone models.Zone, from, to time.Time) ([]models.PricePoint, error)
	GetAvailableDays(ctx context.Context, zone models.Zone) ([]string, error)
	GetLatest(ctx context.Context, zone models.Zone) (*models.PricePoint, error)
	Count(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Port       int
	APIKey     string
	CORSOrigin string
	SeasonLag  int
}

type Server struct {
	db         pinger
	prices     priceStore
	httpServer *http.Server
	apiKey     string
	seasonLag  int
}

func NewServer(pool *pgxpool.Pool, opts Options) *Server {
	return newServer(pool, repository.NewPriceRepo(pool), opts)
}

func newServer(db pinger, prices priceStore, opts Options) *Server {
	s := &Server{
		db:        db,
		prices:    prices,
		apiKey:    opts.APIKey,
		seasonLag: opts.SeasonLag,
	}

	mux := http.NewServeMux()

	// Price routes
	mux.HandleFunc("GET /v1/prices/{zone}/today", s.handlePricesToday)
	mux.HandleFunc("GET /v1/prices/{zone}/day/{date}", s.handlePricesByDay)
	mux.HandleFunc("GET /v1/prices/{zone}/days", s.handleAvailableDays)
	mux.HandleFunc("GET /v1/prices/{zone}/latest", s.handleLatestPrice)

	// Backtest
	mux.HandleFunc("GET /v1/backtest/{zone}", s.handleBacktest)

	// No auth required
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Preflights carry no Authorization header and must not reach auth.
	handler := corsMiddleware(s.authMiddleware(mux), opts.CORSOrigin)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	fmt.Printf("[API] REST API server started on http://localhost%s\n", s.httpServer.Addr)
	fmt.Printf("[API] Health check: http://localhost%s/health\n", s.httpServer.Addr)
	if s.apiKey != "" {
		fmt.Println("[API] Authentication: enabled (Bearer token)")
	} else {
		fmt.Println("[API] Authentication: disabled (no API_KEY configured)")
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func validateDate(date string) bool {
	if !dateRegexp.MatchString(date) {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// zoneParam parses the {zone} path value, writing a 400 on failure.
func zoneParam(w http.ResponseWriter, r *http.Request) (models.Zone, bool) {
	z, err := models.ParseZone(r.PathValue("zone"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return z, true
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
