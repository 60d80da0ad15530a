// Package records serves the pipeline output streams and the live plant
// status over HTTP.
package records

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	corerecords "github.com/immansha/renewcast/core/records"
)

// DefaultLimit is the number of records returned when n is not given.
const DefaultLimit = 100

// NewHandler returns an HTTP handler exposing one record stream via GET.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty. Supported query parameters are plant_id, start and end
// (RFC3339) and n, the number of newest records to return.
func NewHandler[T corerecords.Record](store corerecords.Store[T], token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, token) {
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		recs, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []T{}
		}
		writeJSON(w, recs)
	})
}

func allow(w http.ResponseWriter, r *http.Request, token string) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func parseQuery(r *http.Request) (corerecords.Query, error) {
	v := r.URL.Query()
	q := corerecords.Query{EntityID: v.Get("plant_id"), Limit: DefaultLimit}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	if s := v.Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Limit = n
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
