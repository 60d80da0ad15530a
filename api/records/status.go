package records

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/immansha/renewcast/core/events"
	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/internal/eventbus"
)

// PlantStatus is the latest known state of one plant.
type PlantStatus struct {
	PlantID   string                `json:"plant_id"`
	Forecast  *model.ForecastRecord `json:"forecast,omitempty"`
	Dispatch  *model.GatedDispatch  `json:"dispatch,omitempty"`
	Changed   bool                  `json:"dispatch_changed"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// StatusBoard keeps the latest forecast and decision per plant from the
// event bus. It is safe for concurrent use.
type StatusBoard struct {
	mu     sync.RWMutex
	plants map[string]*PlantStatus
	cycles int
	lastAt time.Time
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{plants: make(map[string]*PlantStatus)}
}

// Watch consumes bus events until ctx is done or the bus is closed.
func (b *StatusBoard) Watch(ctx context.Context, bus *eventbus.TypedBus[events.Event]) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				b.Apply(ev)
			}
		}
	}()
	return done
}

// Apply folds one event into the board.
func (b *StatusBoard) Apply(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch e := ev.(type) {
	case events.ForecastUpdated:
		f := e.Forecast
		p := b.plant(f.EntityID)
		p.Forecast = &f
		p.UpdatedAt = e.Time
	case events.DispatchGated:
		g := e.Dispatch
		p := b.plant(g.EntityID)
		p.Dispatch = &g
		p.Changed = e.Changed
		p.UpdatedAt = e.Time
	case events.CycleCompleted:
		b.cycles++
		b.lastAt = e.Time
	}
}

func (b *StatusBoard) plant(id string) *PlantStatus {
	p, ok := b.plants[id]
	if !ok {
		p = &PlantStatus{PlantID: id}
		b.plants[id] = p
	}
	return p
}

// Snapshot returns the plant states sorted by id.
func (b *StatusBoard) Snapshot() []PlantStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]PlantStatus, 0, len(b.plants))
	for _, p := range b.plants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlantID < out[j].PlantID })
	return out
}

type statusResponse struct {
	Cycles    int           `json:"cycles"`
	LastCycle time.Time     `json:"last_cycle"`
	Plants    []PlantStatus `json:"plants"`
}

// Handler exposes the board via GET. A plant_id parameter narrows the result.
func (b *StatusBoard) Handler(token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, token) {
			return
		}
		plants := b.Snapshot()
		if id := r.URL.Query().Get("plant_id"); id != "" {
			filtered := plants[:0]
			for _, p := range plants {
				if p.PlantID == id {
					filtered = append(filtered, p)
				}
			}
			plants = filtered
		}
		b.mu.RLock()
		resp := statusResponse{Cycles: b.cycles, LastCycle: b.lastAt, Plants: plants}
		b.mu.RUnlock()
		writeJSON(w, resp)
	})
}
