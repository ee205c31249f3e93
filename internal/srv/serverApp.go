package srv

import (
	"context"
	"image/color"
	"time"

	"github.com/jypelle/tabelo/apimodel"
	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/device"
	"github.com/jypelle/tabelo/internal/srv/event"
	"github.com/jypelle/tabelo/internal/srv/freshness"
	"github.com/jypelle/tabelo/internal/srv/provider"
	"github.com/jypelle/tabelo/internal/srv/render"
	"github.com/jypelle/tabelo/internal/srv/schedule"
	"github.com/jypelle/tabelo/internal/version"
	"github.com/sirupsen/logrus"
)

// pumpStopTimeout bounds the wait for the display pump to clear the panel.
const pumpStopTimeout = 10 * time.Second

type ServerApp struct {
	*config.ServerConfig
	displayDevice *device.Display
	apiDevice     *device.Api
	buttonsDevice *device.Buttons

	scheduler   *schedule.RefreshScheduler
	coordinator *freshness.Coordinator
	pump        *Pump

	cancel   context.CancelFunc
	pumpDone chan bool
}

func NewServerApp(configDir string, debugMode bool, simulationMode bool) *ServerApp {

	logrus.Debugf("Creation of tabelo server %s ...", version.AppVersion.String())

	app := &ServerApp{
		ServerConfig: config.NewServerConfig(configDir, debugMode, simulationMode),
		pumpDone:     make(chan bool, 1),
	}

	app.scheduler = schedule.NewRefreshScheduler()
	app.scheduler.SetInterval(schedule.QueueRebuildTimer, app.Refresh.QueueRebuild)
	app.coordinator = freshness.NewCoordinator(app.scheduler, time.Now)
	app.registerSources()

	renderer, err := render.NewRenderer(app.Display.Width, app.Display.Height, app.Location())
	if err != nil {
		logrus.Fatalf("Unable to create renderer: %v\n", err)
	}
	dispatcher, err := app.Dispatcher()
	if err != nil {
		logrus.Fatalf("Invalid windows: %v\n", err)
	}

	app.displayDevice = device.NewDisplay(app.Display)
	app.apiDevice = device.NewApi(app.ServerConfig, app, app.displayDevice)

	app.buttonsDevice = device.NewButtons(app.Buttons)

	var events <-chan event.ApiEvent
	if app.ApiParam.Enabled {
		events = app.apiDevice.EventChannel()
	}
	var buttonEvents <-chan event.ButtonEvent
	if app.buttonsEnabled() {
		buttonEvents = app.buttonsDevice.EventChannel()
	}

	location := app.Location()
	now := func() time.Time {
		return time.Now().In(location)
	}
	app.pump = NewPump(PumpParam{
		Scheduler:        app.scheduler,
		Dispatcher:       dispatcher,
		Coordinator:      app.coordinator,
		Output:           app.displayDevice,
		Populator:        NewScreenQueuer(app.ServerParam, renderer, app.coordinator, time.Now),
		Events:           events,
		ButtonEvents:     buttonEvents,
		Now:              now,
		FetchConcurrency: app.Refresh.FetchConcurrency,
		IdleWait:         app.Refresh.IdleWait,
	})

	logrus.Debugln("Server created")

	return app
}

// registerSources declares every data source, seeded with the values saved
// by the previous run.
func (s *ServerApp) registerSources() {
	weatherClient := provider.NewWeatherClient(s.Weather.Url, s.Weather.ApiKey, s.Weather.Lat, s.Weather.Lon, s.Weather.Units, s.Refresh.FetchTimeout)
	transitClient := provider.NewTransitClient(s.Transit.PredictionsUrl, s.Transit.AlertsUrl, s.Transit.ApiKey, s.Refresh.FetchTimeout, s.Location())

	var lastWeather interface{}
	lastWeatherAt := time.Time{}
	if weather, fetchedAt, ok := s.LastWeather(); ok {
		lastWeather, lastWeatherAt = weather, fetchedAt
	}
	s.register(freshness.Source{
		Id:       freshness.WeatherSourceId,
		Interval: s.Refresh.Weather,
		Fetch: func(ctx context.Context) (interface{}, error) {
			return weatherClient.Weather(ctx)
		},
	}, lastWeather, lastWeatherAt)

	for _, trackedStop := range s.TrackedStops {
		route, stopId := trackedStop.Route, trackedStop.StopId
		s.register(freshness.Source{
			Id:       freshness.PredictionsSourceId(route, stopId),
			Interval: s.Refresh.Predictions,
			Fetch: func(ctx context.Context) (interface{}, error) {
				return transitClient.Predictions(ctx, route, stopId)
			},
		}, nil, time.Time{})
	}

	for _, route := range s.Routes() {
		route := route
		var lastRouteStatus interface{}
		lastRouteStatusAt := time.Time{}
		if routeStatus, fetchedAt, ok := s.LastRouteStatus(route); ok {
			lastRouteStatus, lastRouteStatusAt = routeStatus, fetchedAt
		}
		s.register(freshness.Source{
			Id:       freshness.AlertsSourceId(route),
			Interval: s.Refresh.Alerts,
			Fetch: func(ctx context.Context) (interface{}, error) {
				return transitClient.RouteStatus(ctx, route)
			},
		}, lastRouteStatus, lastRouteStatusAt)
	}

	s.coordinator.SetOnUpdate(func(id string, value interface{}, fetchedAt time.Time) {
		switch v := value.(type) {
		case provider.Weather:
			s.SetLastWeather(v, fetchedAt)
		case provider.RouteStatus:
			s.SetLastRouteStatus(v, fetchedAt)
		}
	})
}

func (s *ServerApp) register(source freshness.Source, initial interface{}, fetchedAt time.Time) {
	if err := s.coordinator.Register(source, initial, fetchedAt); err != nil {
		logrus.Fatalf("Unable to register source %s: %v\n", source.Id, err)
	}
}

func (s *ServerApp) Start(ctx context.Context) {
	logrus.Printf("Starting tabelo server ...")

	logrus.Printf("Starting devices ...")

	// Start display device
	s.displayDevice.Start()
	if err := s.displayDevice.Clear(color.White); err != nil {
		logrus.Errorf("Unable to clear display: %v", err)
	}

	// Start api device
	if s.ApiParam.Enabled {
		s.apiDevice.Start()
	}

	// Start buttons device
	if s.buttonsEnabled() {
		s.buttonsDevice.Start()
	}

	// Start display pump
	pumpCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		s.pump.Run(pumpCtx)
		s.pumpDone <- true
	}()
}

func (s *ServerApp) Stop() {
	logrus.Printf("Stopping tabelo server ...")

	// Stop api
	if s.ApiParam.Enabled {
		s.apiDevice.StopSendingEvent()
	}

	// Stop buttons device
	if s.buttonsEnabled() {
		s.buttonsDevice.StopSendingEvent()
	}

	// Stop display pump, which leaves the panel cleared and asleep
	s.cancel()
	select {
	case <-s.pumpDone:
	case <-time.After(pumpStopTimeout):
		logrus.Warnf("Display pump did not stop in time")
	}

	// Stop display device
	s.displayDevice.Stop()

	// Flush state backup
	s.ServerConfig.ServerState.FlushSave()

	logrus.Printf("Server stopped")
}

func (s *ServerApp) buttonsEnabled() bool {
	return s.buttonsDevice.Enabled() && !s.SimulationMode
}

func (s *ServerApp) Status() apimodel.Status {
	return s.pump.Status()
}
