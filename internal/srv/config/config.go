package config

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const paramFilename = "param.yaml"
const stateFilename = "state.yaml"

type ServerConfig struct {
	ConfigDir      string
	DebugMode      bool
	SimulationMode bool

	*ServerParam
	*ServerState
}

func NewServerConfig(configDir string, debugMode bool, simulationMode bool) *ServerConfig {
	serverConfig := &ServerConfig{
		ConfigDir:      configDir,
		DebugMode:      debugMode,
		SimulationMode: simulationMode,
	}

	// Check Configuration folder
	_, err := os.Stat(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Printf("Creation of config folder: %s", configDir)
			err = os.MkdirAll(configDir, 0770)
			if err != nil {
				logrus.Fatalf("Unable to create config folder: %v\n", err)
			}
		} else {
			logrus.Fatalf("Unable to access config folder: %s", configDir)
		}
	}

	// Open param file
	rawParam, err := os.ReadFile(serverConfig.GetCompleteParamFilename())
	if err != nil {
		// Create default param file
		logrus.Infof("Create default param file")
		rawParam = ParamDefaultFile
		err = os.WriteFile(serverConfig.GetCompleteParamFilename(), ParamDefaultFile, 0660)
		if err != nil {
			logrus.Fatalf("Unable to save param file: %v\n", err)
		}
	}

	serverConfig.ServerParam, err = LoadServerParam(rawParam)
	if err != nil {
		logrus.Fatalf("Invalid param file %s:\n%v\n", serverConfig.GetCompleteParamFilename(), err)
	}
	serverConfig.ServerParam.ApplyEnvironment(os.Getenv)
	if simulationMode {
		serverConfig.ServerParam.Display.Driver = SIMULATION_DRIVER
	}

	// Open state file
	serverConfig.ServerState = NewServerState(serverConfig.GetCompleteStateFilename())

	return serverConfig
}

func (sc *ServerConfig) GetCompleteParamFilename() string {
	return filepath.Join(sc.ConfigDir, paramFilename)
}

func (sc *ServerConfig) GetCompleteStateFilename() string {
	return filepath.Join(sc.ConfigDir, stateFilename)
}

func (sc *ServerConfig) GetCompleteCertFilename() string {
	return filepath.Join(sc.ConfigDir, "cert.pem")
}

func (sc *ServerConfig) GetCompleteKeyFilename() string {
	return filepath.Join(sc.ConfigDir, "key.pem")
}
