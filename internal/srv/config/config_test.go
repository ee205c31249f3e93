package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jypelle/tabelo/internal/srv/provider"
	"github.com/jypelle/tabelo/internal/srv/screen"
)

func TestDefaultParam(t *testing.T) {
	serverParam, err := LoadServerParam(ParamDefaultFile)
	if err != nil {
		t.Fatalf("default param file is invalid: %v", err)
	}

	if len(serverParam.TrackedStops) != 3 || serverParam.TrackedStops[0].Route != "X9" {
		t.Errorf("tracked stops = %+v", serverParam.TrackedStops)
	}
	if got := serverParam.Routes(); len(got) != 3 {
		t.Errorf("Routes() = %v", got)
	}
	if serverParam.Refresh.Weather != 3*time.Minute || serverParam.Refresh.QueueRebuild != 5*time.Minute {
		t.Errorf("refresh = %+v", serverParam.Refresh)
	}

	morning := serverParam.Schedules["morning"]
	if len(morning) != 3 || morning[0].Type != MESSAGE_BLOCK || morning[0].Dwell != 5*time.Second {
		t.Fatalf("morning schedule = %+v", morning)
	}
	if morning[0].Text != "I love you\n        - Alan" {
		t.Errorf("morning message = %q", morning[0].Text)
	}
	if morning[1].RefreshMode != screen.FULL_REFRESH {
		t.Errorf("refresh mode = %v", morning[1].RefreshMode)
	}

	dispatcher, err := serverParam.Dispatcher()
	if err != nil {
		t.Fatalf("Dispatcher: %v", err)
	}
	if got := dispatcher.Resolve(time.Date(2024, 6, 3, 7, 0, 0, 0, time.Local)); got != "morning" {
		t.Errorf("07:00 resolves to %q", got)
	}
	if got := dispatcher.Resolve(time.Date(2024, 6, 3, 23, 0, 0, 0, time.Local)); got != "night" {
		t.Errorf("23:00 resolves to %q", got)
	}
}

func TestInvalidParam(t *testing.T) {
	valid := string(ParamDefaultFile)

	tests := []struct {
		name    string
		param   string
		field   string
		replace [2]string
	}{
		{name: "unknown driver", field: "display.driver", replace: [2]string{"driver: epd", "driver: crt"}},
		{name: "unknown window schedule", field: "windows[0]", replace: [2]string{"schedule: morning", "schedule: brunch"}},
		{name: "unknown default", field: "default_schedule", replace: [2]string{"default_schedule: night", "default_schedule: siesta"}},
		{name: "gap without default", field: "windows", replace: [2]string{"default_schedule: night", "default_schedule: \"\""}},
		{name: "overlap", field: "windows", replace: [2]string{"end: \"12:00\"", "end: \"13:00\""}},
		{name: "unknown block", field: "schedules.afternoon[0]", replace: [2]string{"  afternoon:\n    - type: transit", "  afternoon:\n    - type: news"}},
		{name: "negative dwell", field: "schedules", replace: [2]string{"dwell: 10s", "dwell: -1s"}},
		{name: "missing stop id", field: "tracked_stops[2]", replace: [2]string{"stop_id: \"903\"", "stop_id: \"\""}},
		{name: "alphanumeric stop id", field: "tracked_stops[2]", replace: [2]string{"stop_id: \"903\"", "stop_id: \"90a\""}},
		{name: "duplicated stop", field: "tracked_stops[1]", replace: [2]string{"stop_id: \"14619\"", "stop_id: \"6024\""}},
		{name: "bad concurrency", field: "refresh.fetch_concurrency", replace: [2]string{"fetch_concurrency: 2", "fetch_concurrency: -1"}},
		{name: "not yaml", field: "param file", replace: [2]string{"display:", "display: ["}},
	}
	for _, tt := range tests {
		param := strings.Replace(valid, tt.replace[0], tt.replace[1], 1)
		if param == valid {
			t.Fatalf("%s: replacement %q not applied", tt.name, tt.replace[0])
		}
		if tt.name == "duplicated stop" {
			param = strings.Replace(param, "route: \"9\"", "route: X9", 1)
		}
		_, err := LoadServerParam([]byte(param))
		if err == nil {
			t.Errorf("%s: expected a configuration error", tt.name)
			continue
		}
		var configErr *ConfigError
		if !errors.As(err, &configErr) {
			t.Errorf("%s: %v is not a ConfigError", tt.name, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.field) {
			t.Errorf("%s: error %q does not name %s", tt.name, err, tt.field)
		}
	}
}

func TestApplyEnvironment(t *testing.T) {
	serverParam, err := LoadServerParam(ParamDefaultFile)
	if err != nil {
		t.Fatalf("LoadServerParam: %v", err)
	}
	env := map[string]string{
		"TABELO_WEATHER_API_KEY": "owm",
		"TABELO_TRANSIT_API_KEY": "cta",
	}
	serverParam.ApiParam.ApiKey = "kept"
	serverParam.ApplyEnvironment(func(key string) string { return env[key] })

	if serverParam.Weather.ApiKey != "owm" || serverParam.Transit.ApiKey != "cta" || serverParam.ApiParam.ApiKey != "kept" {
		t.Errorf("credentials = %q %q %q", serverParam.Weather.ApiKey, serverParam.Transit.ApiKey, serverParam.ApiParam.ApiKey)
	}
}

func TestNewTrackedStop(t *testing.T) {
	trackedStop, err := NewTrackedStop(" 72 ", "903", "", "North & Bosworth", "Eastbound")
	if err != nil {
		t.Fatalf("NewTrackedStop: %v", err)
	}
	if trackedStop.Route != "72" || trackedStop.StopNumber != "72" {
		t.Errorf("trackedStop = %+v", trackedStop)
	}
	if _, err := NewTrackedStop("72", "903", "", "", "Eastbound"); err == nil {
		t.Errorf("stop without name accepted")
	}
	if _, err := NewTrackedStop("", "903", "", "North & Bosworth", ""); err == nil {
		t.Errorf("stop without route accepted")
	}
}

func TestServerConfigCreatesDefaults(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "tabelo")

	serverConfig := NewServerConfig(configDir, false, true)
	if serverConfig.Display.Driver != SIMULATION_DRIVER {
		t.Errorf("driver = %q, want simulation", serverConfig.Display.Driver)
	}
	if _, err := os.Stat(serverConfig.GetCompleteParamFilename()); err != nil {
		t.Errorf("default param file not written: %v", err)
	}
	if _, _, ok := serverConfig.LastWeather(); ok {
		t.Errorf("fresh state should hold no weather")
	}
}

func TestServerStateRoundTrip(t *testing.T) {
	stateFilename := filepath.Join(t.TempDir(), stateFilename)
	fetchedAt := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)

	state := NewServerState(stateFilename)
	state.SetLastWeather(provider.Weather{Temperature: 71.6, Current: provider.Conditions{Main: "Clouds", Icon: "04d"}, Units: "imperial"}, fetchedAt)
	state.SetLastRouteStatus(provider.RouteStatus{Route: "X9", Status: "Bus Reroute"}, fetchedAt)
	state.FlushSave()

	reloaded := NewServerState(stateFilename)
	weather, weatherFetchedAt, ok := reloaded.LastWeather()
	if !ok || weather.Temperature != 71.6 || weather.Current.Icon != "04d" || !weatherFetchedAt.Equal(fetchedAt) {
		t.Errorf("weather = %+v at %v (%v)", weather, weatherFetchedAt, ok)
	}
	routeStatus, _, ok := reloaded.LastRouteStatus("X9")
	if !ok || routeStatus.Status != "Bus Reroute" {
		t.Errorf("route status = %+v (%v)", routeStatus, ok)
	}
	if _, _, ok := reloaded.LastRouteStatus("72"); ok {
		t.Errorf("unknown route has a status")
	}
}

func TestCorruptStateIsIgnored(t *testing.T) {
	stateFilename := filepath.Join(t.TempDir(), stateFilename)
	if err := os.WriteFile(stateFilename, []byte("weather: [not a map"), 0660); err != nil {
		t.Fatal(err)
	}
	state := NewServerState(stateFilename)
	if _, _, ok := state.LastWeather(); ok {
		t.Errorf("corrupt state should hold no weather")
	}
}
