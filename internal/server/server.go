// Package server is the HTTP API in front of the feed cache.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/jdholdren/reader/internal/feeds"
	"github.com/jdholdren/reader/internal/serverutil"
)

type (
	// Server answers reads of the feed cache, fetching feeds it doesn't
	// hold yet.
	Server struct {
		*http.Server

		store     *feeds.Store
		requester *feeds.Requester
	}

	Config struct {
		Port       int
		CorsOrigin string
	}
)

func NewServer(config Config, store *feeds.Store, requester *feeds.Requester) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		store:     store,
		requester: requester,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsOrigin}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/healthz", srvr.getHealth).Methods(http.MethodGet)

	// Feed cache
	r.HandleFuncE("/v1/feeds", srvr.getFeeds).Methods(http.MethodGet)
	r.HandleFuncE("/v1/feeds:prefetch", srvr.postPrefetch).Methods(http.MethodPost)
	r.HandleFuncE("/v1/feeds/{feedID}", srvr.getFeed).Methods(http.MethodGet)
	r.HandleFuncE("/v1/feeds/{feedID}/refresh", srvr.postRefresh).Methods(http.MethodPost)

	// What would be persisted right now
	r.HandleFuncE("/v1/snapshot", srvr.getSnapshot).Methods(http.MethodGet)

	slog.Debug("configured feed cache server", "port", config.Port)

	return &srvr
}

func (s Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"feeds":  len(s.store.Items()),
	})
}
