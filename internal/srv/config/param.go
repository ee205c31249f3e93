package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jypelle/tabelo/internal/srv/schedule"
	"github.com/jypelle/tabelo/internal/srv/screen"
	"gopkg.in/yaml.v3"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

const (
	EPD_DRIVER        = "epd"
	OLED_DRIVER       = "oled"
	SIMULATION_DRIVER = "simulation"
)

const (
	MESSAGE_BLOCK = "message"
	TRANSIT_BLOCK = "transit"
	WEATHER_BLOCK = "weather"
)

type ServerParam struct {
	Timezone        string             `yaml:"timezone,omitempty"`
	Display         DisplayParam       `yaml:"display"`
	Refresh         RefreshParam       `yaml:"refresh"`
	Weather         WeatherParam       `yaml:"weather"`
	Transit         TransitParam       `yaml:"transit"`
	TrackedStops    []TrackedStop      `yaml:"tracked_stops"`
	Windows         []schedule.Window  `yaml:"windows"`
	DefaultSchedule string             `yaml:"default_schedule"`
	Schedules       map[string][]Block `yaml:"schedules"`
	ApiParam        ApiParam           `yaml:"api"`
	Buttons         ButtonsParam       `yaml:"buttons,omitempty"`

	location *time.Location
}

type DisplayParam struct {
	Driver  string `yaml:"driver"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Rotate  bool   `yaml:"rotate"`
	SpiPort string `yaml:"spi_port,omitempty"`
	I2cBus  string `yaml:"i2c_bus,omitempty"`
}

type RefreshParam struct {
	Weather          time.Duration `yaml:"weather"`
	Predictions      time.Duration `yaml:"predictions"`
	Alerts           time.Duration `yaml:"alerts"`
	QueueRebuild     time.Duration `yaml:"queue_rebuild"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	FetchConcurrency int           `yaml:"fetch_concurrency"`
	StaleLimit       time.Duration `yaml:"stale_limit"`
	IdleWait         time.Duration `yaml:"idle_wait"`
}

type WeatherParam struct {
	ApiKey   string  `yaml:"api_key"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	Units    string  `yaml:"units"`
	Location string  `yaml:"location"`
	Url      string  `yaml:"url,omitempty"`
}

type TransitParam struct {
	ApiKey         string `yaml:"api_key"`
	PredictionsUrl string `yaml:"predictions_url,omitempty"`
	AlertsUrl      string `yaml:"alerts_url,omitempty"`
	MaxArrivals    int    `yaml:"max_arrivals"`
}

// Block is one step of a schedule: the screens it queues share a dwell
// duration and a refresh mode.
type Block struct {
	Type        string             `yaml:"type"`
	Text        string             `yaml:"text,omitempty"`
	Dwell       time.Duration      `yaml:"dwell"`
	RefreshMode screen.RefreshMode `yaml:"refresh_mode"`
}

type ApiParam struct {
	Enabled bool   `yaml:"enabled"`
	SslPort int64  `yaml:"ssl_port"`
	ApiKey  string `yaml:"api_key"`
}

// ButtonsParam names the GPIO pins of the optional push buttons. An empty
// name disables the button.
type ButtonsParam struct {
	Next    string `yaml:"next,omitempty"`
	Rebuild string `yaml:"rebuild,omitempty"`
}

// ConfigError reports an invalid configuration value. It is only ever
// produced at startup.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

func configErrorf(field string, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LoadServerParam interprets a param file, fills the defaults and validates it.
func LoadServerParam(rawParam []byte) (*ServerParam, error) {
	serverParam := &ServerParam{}
	if err := yaml.Unmarshal(rawParam, serverParam); err != nil {
		return nil, &ConfigError{Field: "param file", Message: err.Error()}
	}
	serverParam.applyDefaults()
	if err := serverParam.Validate(); err != nil {
		return nil, err
	}
	return serverParam, nil
}

func (p *ServerParam) applyDefaults() {
	if p.Display.Driver == "" {
		p.Display.Driver = EPD_DRIVER
	}
	if p.Display.Width == 0 {
		p.Display.Width = 250
	}
	if p.Display.Height == 0 {
		p.Display.Height = 122
	}
	if p.Refresh.Weather == 0 {
		p.Refresh.Weather = 3 * time.Minute
	}
	if p.Refresh.Predictions == 0 {
		p.Refresh.Predictions = time.Minute
	}
	if p.Refresh.Alerts == 0 {
		p.Refresh.Alerts = 5 * time.Minute
	}
	if p.Refresh.QueueRebuild == 0 {
		p.Refresh.QueueRebuild = 5 * time.Minute
	}
	if p.Refresh.FetchTimeout == 0 {
		p.Refresh.FetchTimeout = 10 * time.Second
	}
	if p.Refresh.FetchConcurrency == 0 {
		p.Refresh.FetchConcurrency = 2
	}
	if p.Refresh.IdleWait == 0 {
		p.Refresh.IdleWait = 5 * time.Second
	}
	if p.Weather.Units == "" {
		p.Weather.Units = "imperial"
	}
	if p.Transit.MaxArrivals == 0 {
		p.Transit.MaxArrivals = 3
	}
	for i := range p.TrackedStops {
		if p.TrackedStops[i].StopNumber == "" {
			p.TrackedStops[i].StopNumber = p.TrackedStops[i].Route
		}
	}
}

// ApplyEnvironment overrides credentials with the TABELO_* variables.
func (p *ServerParam) ApplyEnvironment(getenv func(string) string) {
	if value := getenv("TABELO_WEATHER_API_KEY"); value != "" {
		p.Weather.ApiKey = value
	}
	if value := getenv("TABELO_TRANSIT_API_KEY"); value != "" {
		p.Transit.ApiKey = value
	}
	if value := getenv("TABELO_API_KEY"); value != "" {
		p.ApiParam.ApiKey = value
	}
}

// Validate checks every cross reference of the param file and returns all
// problems found, joined.
func (p *ServerParam) Validate() error {
	var errs []error

	location := time.Local
	if p.Timezone != "" {
		var err error
		location, err = time.LoadLocation(p.Timezone)
		if err != nil {
			errs = append(errs, configErrorf("timezone", "%v", err))
			location = time.Local
		}
	}
	p.location = location

	switch p.Display.Driver {
	case EPD_DRIVER, OLED_DRIVER, SIMULATION_DRIVER:
	default:
		errs = append(errs, configErrorf("display.driver", "unknown driver %q", p.Display.Driver))
	}
	if p.Buttons.Next != "" && p.Buttons.Next == p.Buttons.Rebuild {
		errs = append(errs, configErrorf("buttons", "pin %s is used by two buttons", p.Buttons.Next))
	}
	if p.Display.Width <= 0 || p.Display.Height <= 0 {
		errs = append(errs, configErrorf("display", "invalid size %dx%d", p.Display.Width, p.Display.Height))
	}

	for name, value := range map[string]time.Duration{
		"refresh.weather":       p.Refresh.Weather,
		"refresh.predictions":   p.Refresh.Predictions,
		"refresh.alerts":        p.Refresh.Alerts,
		"refresh.queue_rebuild": p.Refresh.QueueRebuild,
		"refresh.fetch_timeout": p.Refresh.FetchTimeout,
		"refresh.stale_limit":   p.Refresh.StaleLimit,
		"refresh.idle_wait":     p.Refresh.IdleWait,
	} {
		if value < 0 {
			errs = append(errs, configErrorf(name, "negative duration %s", value))
		}
	}
	if p.Refresh.FetchConcurrency < 1 {
		errs = append(errs, configErrorf("refresh.fetch_concurrency", "must be at least 1"))
	}
	if p.Transit.MaxArrivals < 1 {
		errs = append(errs, configErrorf("transit.max_arrivals", "must be at least 1"))
	}

	seenStops := make(map[string]bool)
	for i, trackedStop := range p.TrackedStops {
		if err := trackedStop.Validate(); err != nil {
			errs = append(errs, configErrorf(fmt.Sprintf("tracked_stops[%d]", i), "%v", err))
			continue
		}
		key := trackedStop.Route + ":" + trackedStop.StopId
		if seenStops[key] {
			errs = append(errs, configErrorf(fmt.Sprintf("tracked_stops[%d]", i), "stop %s of route %s tracked twice", trackedStop.StopId, trackedStop.Route))
		}
		seenStops[key] = true
	}

	if len(p.Schedules) == 0 {
		errs = append(errs, configErrorf("schedules", "no schedule defined"))
	}
	for name, blocks := range p.Schedules {
		for i, block := range blocks {
			field := fmt.Sprintf("schedules.%s[%d]", name, i)
			switch block.Type {
			case MESSAGE_BLOCK:
				if strings.TrimSpace(block.Text) == "" {
					errs = append(errs, configErrorf(field, "message block without text"))
				}
			case TRANSIT_BLOCK, WEATHER_BLOCK:
			default:
				errs = append(errs, configErrorf(field, "unknown block type %q", block.Type))
			}
			if block.Dwell < 0 {
				errs = append(errs, configErrorf(field, "negative dwell %s", block.Dwell))
			}
		}
	}

	for i, window := range p.Windows {
		if _, ok := p.Schedules[window.Schedule]; !ok {
			errs = append(errs, configErrorf(fmt.Sprintf("windows[%d]", i), "unknown schedule %q", window.Schedule))
		}
	}
	if p.DefaultSchedule != "" {
		if _, ok := p.Schedules[p.DefaultSchedule]; !ok {
			errs = append(errs, configErrorf("default_schedule", "unknown schedule %q", p.DefaultSchedule))
		}
	}
	if _, err := schedule.NewDispatcher(p.Windows, p.DefaultSchedule); err != nil {
		errs = append(errs, configErrorf("windows", "%v", err))
	}

	return errors.Join(errs...)
}

// Location is the time zone of the windows, the clock and the predictions.
func (p *ServerParam) Location() *time.Location {
	if p.location == nil {
		return time.Local
	}
	return p.location
}

func (p *ServerParam) Dispatcher() (*schedule.Dispatcher, error) {
	return schedule.NewDispatcher(p.Windows, p.DefaultSchedule)
}

// Routes returns the distinct routes of the tracked stops, in order of appearance.
func (p *ServerParam) Routes() []string {
	var routes []string
	seen := make(map[string]bool)
	for _, trackedStop := range p.TrackedStops {
		if !seen[trackedStop.Route] {
			seen[trackedStop.Route] = true
			routes = append(routes, trackedStop.Route)
		}
	}
	return routes
}
