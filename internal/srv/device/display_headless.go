//go:build !amd64

package device

// Only amd64 desktops get a simulation window.
type simulationWindow struct{}

func (d *Display) startSimulation() {
}

func (d *Display) invalidateSimulationWindow() {
}

func (d *Display) closeSimulationWindow() {
}
