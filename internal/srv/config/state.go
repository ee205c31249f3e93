package config

import (
	"os"
	"sync"
	"time"

	"github.com/jypelle/tabelo/internal/srv/provider"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const stateSaveDelay = 10 * time.Second

// ServerState keeps the last successful fetches across restarts, so the
// display has something to show before the first refresh completes.
type ServerState struct {
	serverStateConfig     ServerStateConfig
	lock                  sync.RWMutex
	backupTimer           *time.Timer
	completeStateFilename string
}

func NewServerState(completeStateFilename string) *ServerState {
	serverState := &ServerState{
		completeStateFilename: completeStateFilename,
	}

	rawConfig, err := os.ReadFile(completeStateFilename)
	if err == nil {
		// Interpret state file
		err = yaml.Unmarshal(rawConfig, &serverState.serverStateConfig)
		if err != nil {
			logrus.Warnf("Unable to interpret state file, starting without cached data: %v", err)
			serverState.serverStateConfig = ServerStateConfig{}
		}
	} else {
		logrus.Infof("No state file, starting without cached data")
	}

	return serverState
}

// LastWeather returns the weather saved by a previous fetch.
func (ss *ServerState) LastWeather() (provider.Weather, time.Time, bool) {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	if ss.serverStateConfig.Weather == nil {
		return provider.Weather{}, time.Time{}, false
	}
	return ss.serverStateConfig.Weather.Weather, ss.serverStateConfig.Weather.FetchedAt, true
}

func (ss *ServerState) SetLastWeather(weather provider.Weather, fetchedAt time.Time) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	ss.serverStateConfig.Weather = &WeatherState{Weather: weather, FetchedAt: fetchedAt}
	ss.scheduleSave()
}

func (ss *ServerState) LastRouteStatus(route string) (provider.RouteStatus, time.Time, bool) {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	routeStatusState, ok := ss.serverStateConfig.RouteStatuses[route]
	if !ok {
		return provider.RouteStatus{}, time.Time{}, false
	}
	return routeStatusState.RouteStatus, routeStatusState.FetchedAt, true
}

func (ss *ServerState) SetLastRouteStatus(routeStatus provider.RouteStatus, fetchedAt time.Time) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	if ss.serverStateConfig.RouteStatuses == nil {
		ss.serverStateConfig.RouteStatuses = make(map[string]RouteStatusState)
	}
	ss.serverStateConfig.RouteStatuses[routeStatus.Route] = RouteStatusState{RouteStatus: routeStatus, FetchedAt: fetchedAt}
	ss.scheduleSave()
}

func (ss *ServerState) scheduleSave() {
	if ss.backupTimer == nil {
		ss.backupTimer = time.AfterFunc(stateSaveDelay, func() {
			ss.lock.Lock()
			defer ss.lock.Unlock()
			ss.save()
		})
	} else {
		ss.backupTimer.Reset(stateSaveDelay)
	}
}

func (ss *ServerState) save() {
	logrus.Debugf("Save state file: %s", ss.completeStateFilename)
	rawConfig, err := yaml.Marshal(&ss.serverStateConfig)
	if err != nil {
		logrus.Errorf("Unable to serialize state file: %v", err)
		return
	}
	err = os.WriteFile(ss.completeStateFilename, rawConfig, 0660)
	if err != nil {
		logrus.Errorf("Unable to save state file: %v", err)
	}
}

// FlushSave writes a pending save immediately.
func (ss *ServerState) FlushSave() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.backupTimer != nil {
		if ss.backupTimer.Stop() {
			ss.save()
		}
	}
}

type ServerStateConfig struct {
	Weather       *WeatherState               `yaml:"weather,omitempty"`
	RouteStatuses map[string]RouteStatusState `yaml:"route_statuses,omitempty"`
}

type WeatherState struct {
	Weather   provider.Weather `yaml:"weather"`
	FetchedAt time.Time        `yaml:"fetched_at"`
}

type RouteStatusState struct {
	RouteStatus provider.RouteStatus `yaml:"route_status"`
	FetchedAt   time.Time            `yaml:"fetched_at"`
}
