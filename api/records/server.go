package records

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/immansha/renewcast/core/model"
	corerecords "github.com/immansha/renewcast/core/records"
)

// Streams groups the stores served by the API. Nil stores are not routed.
type Streams struct {
	Dispatch   corerecords.Store[model.GatedDispatch]
	Held       corerecords.Store[model.GatedDispatch]
	Advisories corerecords.Store[corerecords.AdvisoryRecord]
	Anomalies  corerecords.Store[corerecords.AnomalyRecord]
}

// NewMux routes the API endpoints.
func NewMux(s Streams, board *StatusBoard, token string) *http.ServeMux {
	mux := http.NewServeMux()
	if s.Dispatch != nil {
		mux.Handle("/api/dispatch", NewHandler(s.Dispatch, token))
	}
	if s.Held != nil {
		mux.Handle("/api/held", NewHandler(s.Held, token))
	}
	if s.Advisories != nil {
		mux.Handle("/api/advisories", NewHandler(s.Advisories, token))
	}
	if s.Anomalies != nil {
		mux.Handle("/api/anomalies", NewHandler(s.Anomalies, token))
	}
	if board != nil {
		mux.Handle("/api/status", board.Handler(token))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Serve runs the API server until ctx is cancelled.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
