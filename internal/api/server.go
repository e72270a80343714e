// Package api is the HTTP surface of the dashboard: a JSON API consumed by
// whatever renders it. It is a pure consumer of the session, the persistence
// store and the alert queue; no weather logic lives here.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skycast/internal/alerts"
	"skycast/internal/app"
	"skycast/internal/models"
	"skycast/internal/store"
)

// Gateway is the slice of the weather gateway the handlers call directly;
// forecast refreshes for the active location go through the session instead.
type Gateway interface {
	app.Forecaster
	SearchPlaces(ctx context.Context, query string) ([]models.Location, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.Location, error)
}

type Server struct {
	session *app.Session
	store   *store.Store
	queue   *alerts.Queue
	gateway Gateway
	port    string
}

func NewServer(session *app.Session, st *store.Store, queue *alerts.Queue, gw Gateway, port string) *Server {
	return &Server{
		session: session,
		store:   st,
		queue:   queue,
		gateway: gw,
		port:    port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/location", s.handleSetLocation)
	mux.HandleFunc("POST /api/locate", s.handleLocate)
	mux.HandleFunc("POST /api/unit", s.handleSetUnit)

	mux.HandleFunc("GET /api/favorites", s.handleFavorites)
	mux.HandleFunc("POST /api/favorites/toggle", s.handleToggleFavorite)
	mux.HandleFunc("GET /api/comparison", s.handleComparison)
	mux.HandleFunc("POST /api/comparison/toggle", s.handleToggleComparison)
	mux.HandleFunc("POST /api/comparison/remove", s.handleRemoveComparison)
	mux.HandleFunc("DELETE /api/comparison", s.handleClearComparison)
	mux.HandleFunc("GET /api/comparison/weather", s.handleComparisonWeather)

	mux.HandleFunc("GET /api/settings", s.handleSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("POST /api/permission", s.handlePermission)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("DELETE /api/alerts/{id}", s.handleDismissAlert)

	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
