package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immansha/renewcast/core/events"
	"github.com/immansha/renewcast/core/model"
	corerecords "github.com/immansha/renewcast/core/records"
	"github.com/immansha/renewcast/internal/eventbus"
)

func decision(plant string, ts time.Time, mw float64) model.GatedDispatch {
	return model.GatedDispatch{
		DispatchDecision: model.DispatchDecision{ID: plant + ts.Format("150405"), EntityID: plant, Timestamp: ts, AllocatedMW: mw},
		Status:           model.StatusApproved,
		AdjustedMW:       mw,
	}
}

func seeded(t *testing.T) corerecords.Store[model.GatedDispatch] {
	t.Helper()
	s, err := corerecords.NewJSONLStore[model.GatedDispatch](filepath.Join(t.TempDir(), "dispatch.jsonl"))
	require.NoError(t, err)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, plant := range []string{"RJ01", "GJ01", "RJ01", "RJ01"} {
		require.NoError(t, s.Append(context.Background(), decision(plant, base.Add(time.Duration(i)*time.Minute), float64(10+i))))
	}
	return s
}

func get(h http.Handler, url, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_AuthAndFilters(t *testing.T) {
	h := NewHandler(seeded(t), "tok")

	rr := get(h, "/api/dispatch?plant_id=RJ01&n=2", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []model.GatedDispatch
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 12.0, out[0].AdjustedMW)
	assert.Equal(t, 13.0, out[1].AdjustedMW)

	if rr := get(h, "/api/dispatch", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
	if rr := get(h, "/api/dispatch?n=abc", "tok"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if rr := get(h, "/api/dispatch?start=yesterday", "tok"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestHandler_TimeWindowAndEmpty(t *testing.T) {
	h := NewHandler(seeded(t), "")

	rr := get(h, "/api/dispatch?start=2024-05-01T12:01:00Z&end=2024-05-01T12:02:00Z", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []model.GatedDispatch
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "GJ01", out[0].EntityID)

	rr = get(h, "/api/dispatch?plant_id=TN01", "")
	assert.JSONEq(t, "[]", rr.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/dispatch", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusBoard(t *testing.T) {
	board := NewStatusBoard()
	bus := eventbus.NewTyped[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	done := board.Watch(ctx, bus)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(events.ForecastUpdated{Forecast: model.ForecastRecord{EntityID: "RJ01", P50: 62}, Time: now})
	bus.Publish(events.DispatchGated{Dispatch: decision("RJ01", now, 41), Changed: true, Time: now})
	bus.Publish(events.DispatchGated{Dispatch: decision("GJ01", now, 5), Time: now})
	bus.Publish(events.CycleCompleted{Rows: 2, Time: now})
	bus.Close()
	<-done
	cancel()

	snap := board.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "GJ01", snap[0].PlantID)
	assert.Nil(t, snap[0].Forecast)
	require.NotNil(t, snap[1].Forecast)
	assert.Equal(t, 62.0, snap[1].Forecast.P50)
	assert.True(t, snap[1].Changed)

	rr := get(board.Handler("tok"), "/api/status?plant_id=RJ01", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Cycles)
	require.Len(t, resp.Plants, 1)
	assert.Equal(t, 41.0, resp.Plants[0].Dispatch.AdjustedMW)
}

func TestNewMux_RoutesConfiguredStreams(t *testing.T) {
	mux := NewMux(Streams{Dispatch: seeded(t)}, NewStatusBoard(), "")

	assert.Equal(t, http.StatusOK, get(mux, "/api/dispatch", "").Code)
	assert.Equal(t, http.StatusOK, get(mux, "/api/status", "").Code)
	assert.Equal(t, http.StatusOK, get(mux, "/healthz", "").Code)
	assert.Equal(t, http.StatusNotFound, get(mux, "/api/advisories", "").Code)
}
