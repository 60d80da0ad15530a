package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/infra/logger"
)

// Weather produces weather observations, from OpenWeatherMap when a usable
// key is configured and synthetically otherwise.
type Weather struct {
	key  string
	url  string
	http *http.Client
	log  logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeather creates a weather producer.
func NewWeather(cfg Config, log logger.Logger) *Weather {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Weather{
		key:  strings.TrimSpace(cfg.OpenWeatherKey),
		url:  cfg.OpenWeatherURL,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
		rng:  rand.New(rand.NewSource(cfg.Seed + 1)),
	}
}

// Live reports whether observations come from OpenWeatherMap.
func (w *Weather) Live() bool {
	return w.key != "" && !strings.Contains(w.key, "your-")
}

// Observe returns the current observation for e. Lookup failures fall back
// to synthetic data.
func (w *Weather) Observe(ctx context.Context, e model.Entity, now time.Time) model.WeatherReading {
	if !w.Live() {
		return w.Synthetic(e, now)
	}
	obs, err := w.fetch(ctx, e, now)
	if err != nil {
		w.log.Warnf("weather %s: %v, using synthetic", e.ID, err)
		return w.Synthetic(e, now)
	}
	return obs
}

// Synthetic draws an observation around the base cloud cover of e.
func (w *Weather) Synthetic(e model.Entity, now time.Time) model.WeatherReading {
	base := e.BaseCloud
	if base <= 0 {
		base = defaultCloud
	}
	w.mu.Lock()
	cloud := base + w.uniform(-0.05, 0.05)
	temp := 28 + w.uniform(-3, 5)
	wind := w.uniform(2, 8)
	w.mu.Unlock()
	cond := "Clouds"
	if base < 0.3 {
		cond = "Clear"
	}
	return model.WeatherReading{
		PlantID:       e.ID,
		Source:        "synthetic",
		Timestamp:     now.UTC(),
		CloudFraction: round(cloud, 3),
		TempC:         round(temp, 1),
		WindMS:        round(wind, 2),
		Condition:     cond,
	}
}

type owmResponse struct {
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

func (w *Weather) fetch(ctx context.Context, e model.Entity, now time.Time) (model.WeatherReading, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(e.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(e.Lon, 'f', -1, 64))
	q.Set("appid", w.key)
	q.Set("units", "metric")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url+"?"+q.Encode(), nil)
	if err != nil {
		return model.WeatherReading{}, err
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return model.WeatherReading{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return model.WeatherReading{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.WeatherReading{}, fmt.Errorf("decode: %w", err)
	}
	temp := 25.0
	if body.Main.Temp != nil {
		temp = *body.Main.Temp
	}
	cond := "Clear"
	if len(body.Weather) > 0 && body.Weather[0].Main != "" {
		cond = body.Weather[0].Main
	}
	return model.WeatherReading{
		PlantID:       e.ID,
		Source:        "openweathermap",
		Timestamp:     now.UTC(),
		CloudFraction: body.Clouds.All / 100,
		TempC:         temp,
		WindMS:        body.Wind.Speed,
		Condition:     cond,
	}, nil
}

func (w *Weather) uniform(lo, hi float64) float64 {
	return lo + w.rng.Float64()*(hi-lo)
}
