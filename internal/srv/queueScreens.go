package srv

import (
	"fmt"
	"image"
	"time"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/freshness"
	"github.com/jypelle/tabelo/internal/srv/provider"
	"github.com/jypelle/tabelo/internal/srv/render"
	"github.com/jypelle/tabelo/internal/srv/screen"
	"github.com/sirupsen/logrus"
)

const (
	BUS_TIMES_ERROR = "Error retrieving bus times"
	WEATHER_ERROR   = "Error retrieving weather"
	DISPLAY_ERROR   = "Error displaying screen"
)

// ScreenQueuer turns the blocks of a schedule into screens. It never fetches:
// every screen reads the coordinator cache.
type ScreenQueuer struct {
	param       *config.ServerParam
	renderer    *render.Renderer
	coordinator *freshness.Coordinator
	now         func() time.Time
}

func NewScreenQueuer(param *config.ServerParam, renderer *render.Renderer, coordinator *freshness.Coordinator, now func() time.Time) *ScreenQueuer {
	if now == nil {
		now = time.Now
	}
	return &ScreenQueuer{
		param:       param,
		renderer:    renderer,
		coordinator: coordinator,
		now:         now,
	}
}

func (q *ScreenQueuer) Populate(scheduleId string, queue *screen.Queue, now time.Time) {
	blocks, ok := q.param.Schedules[scheduleId]
	if !ok {
		logrus.Warnf("Unknown schedule %s, nothing to display", scheduleId)
		return
	}

	for _, block := range blocks {
		switch block.Type {
		case config.MESSAGE_BLOCK:
			queue.Append(q.messageScreen(block, now))
		case config.TRANSIT_BLOCK:
			for _, trackedStop := range q.param.TrackedStops {
				q.queueTransitScreens(queue, block, trackedStop, now)
			}
		case config.WEATHER_BLOCK:
			q.queueWeatherScreens(queue, block, now)
		}
	}
}

// ErrorScreen stands in for a screen that could not be drawn.
func (q *ScreenQueuer) ErrorScreen(failed *screen.Screen, now time.Time) *screen.Screen {
	return q.errorScreen("error "+failed.Name, DISPLAY_ERROR, config.Block{Dwell: failed.Dwell, RefreshMode: failed.RefreshMode}, now)
}

func (q *ScreenQueuer) messageScreen(block config.Block, now time.Time) *screen.Screen {
	text := block.Text
	return screen.New("message", screen.MESSAGE_KIND, func() (image.Image, error) {
		return q.renderer.Message(q.header(), text)
	}, block.RefreshMode, block.Dwell, now)
}

func (q *ScreenQueuer) errorScreen(name string, message string, block config.Block, now time.Time) *screen.Screen {
	return screen.New(name, screen.ERROR_KIND, func() (image.Image, error) {
		return q.renderer.Error(q.header(), message)
	}, block.RefreshMode, block.Dwell, now)
}

// queueTransitScreens adds the arrivals of a stop, then the route alert when
// the route is not running normally.
func (q *ScreenQueuer) queueTransitScreens(queue *screen.Queue, block config.Block, trackedStop config.TrackedStop, now time.Time) {
	label := render.StopLabel{
		Number:    trackedStop.StopNumber,
		Name:      trackedStop.StopName,
		Direction: trackedStop.Direction,
	}

	predictionsId := freshness.PredictionsSourceId(trackedStop.Route, trackedStop.StopId)
	name := "predictions " + trackedStop.Route + "/" + trackedStop.StopId
	if q.usable(q.coordinator.Get(predictionsId), now) {
		queue.Append(screen.New(name, screen.PREDICTIONS_KIND, func() (image.Image, error) {
			predictions, ok := q.coordinator.Get(predictionsId).Value.(provider.Predictions)
			if !ok {
				return nil, fmt.Errorf("no predictions for %s", trackedStop)
			}
			return q.renderer.Predictions(q.header(), label, predictions, q.param.Transit.MaxArrivals)
		}, block.RefreshMode, block.Dwell, now))
	} else {
		queue.Append(q.errorScreen(name, BUS_TIMES_ERROR, block, now))
	}

	routeStatus, ok := q.coordinator.Get(freshness.AlertsSourceId(trackedStop.Route)).Value.(provider.RouteStatus)
	if !ok || routeStatus.IsNormal() {
		return
	}
	status := routeStatus.Status
	queue.Append(screen.New("alert "+trackedStop.Route+"/"+trackedStop.StopId, screen.ALERT_KIND, func() (image.Image, error) {
		return q.renderer.Alert(q.header(), label, status)
	}, block.RefreshMode, block.Dwell, now))
}

// queueWeatherScreens adds the current conditions and the next hours forecast.
func (q *ScreenQueuer) queueWeatherScreens(queue *screen.Queue, block config.Block, now time.Time) {
	entry := q.coordinator.Get(freshness.WeatherSourceId)
	if !q.usable(entry, now) {
		queue.Append(q.errorScreen("weather", WEATHER_ERROR, block, now))
		return
	}

	queue.Append(screen.New("weather", screen.WEATHER_KIND, func() (image.Image, error) {
		weather, ok := q.coordinator.Get(freshness.WeatherSourceId).Value.(provider.Weather)
		if !ok {
			return nil, fmt.Errorf("no weather")
		}
		return q.renderer.Weather(q.header(), q.param.Weather.Location, weather)
	}, block.RefreshMode, block.Dwell, now))

	if weather, ok := entry.Value.(provider.Weather); ok && len(weather.Hourly) > 0 {
		queue.Append(screen.New("forecast", screen.FORECAST_KIND, func() (image.Image, error) {
			weather, ok := q.coordinator.Get(freshness.WeatherSourceId).Value.(provider.Weather)
			if !ok {
				return nil, fmt.Errorf("no weather")
			}
			return q.renderer.Forecast(q.header(), weather)
		}, block.RefreshMode, block.Dwell, now))
	}
}

// usable reports whether a cached value can be shown. A failed last attempt
// is surfaced as an error screen even though the value stays cached, and a
// value that has not been refreshed within the stale limit is not shown.
func (q *ScreenQueuer) usable(entry freshness.Entry, now time.Time) bool {
	if !entry.HasValue() || entry.Failing() {
		return false
	}
	return !entry.IsStale(now, q.param.Refresh.StaleLimit)
}

func (q *ScreenQueuer) header() render.Header {
	h := render.Header{Now: q.now()}
	if weather, ok := q.coordinator.Get(freshness.WeatherSourceId).Value.(provider.Weather); ok {
		h.Weather = &weather
	}
	return h
}
