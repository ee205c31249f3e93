package device

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/screen"
	"github.com/sirupsen/logrus"
	"periph.io/x/host/v3"
)

// HardwareError reports a failed write, clear or sleep on the panel.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return "display " + e.Op + ": " + e.Err.Error()
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

// ErrDisplayStopped is returned for commands sent after the device stopped.
var ErrDisplayStopped = errors.New("display stopped")

// panel is the physical screen behind the display device.
type panel interface {
	Show(img image.Image, mode screen.RefreshMode) error
	Clear(c color.Color) error
	Sleep() error
	Close() error
}

type panelCommand struct {
	op     string
	apply  func(p panel) error
	result chan error
}

// Display is the only writer of the panel. Commands are serialized by a
// single goroutine, as bus transfers must not interleave.
type Display struct {
	lock    sync.RWMutex
	param   config.DisplayParam
	panel   panel
	lastImg image.Image

	simulationWindow *simulationWindow

	askDone    chan bool
	askCommand chan panelCommand
	stopped    chan bool
	done       chan bool
}

func NewDisplay(param config.DisplayParam) *Display {
	return &Display{
		param:      param,
		askDone:    make(chan bool),
		askCommand: make(chan panelCommand),
		stopped:    make(chan bool),
		done:       make(chan bool),
	}
}

// newDisplayWithPanel is used to drive a panel that is already open.
func newDisplayWithPanel(param config.DisplayParam, p panel) *Display {
	d := NewDisplay(param)
	d.panel = p
	return d
}

func (d *Display) Start() {
	logrus.Infof("Start display device (%s %dx%d)", d.param.Driver, d.param.Width, d.param.Height)

	if d.panel == nil {
		switch d.param.Driver {
		case config.EPD_DRIVER, config.OLED_DRIVER:
			if _, err := host.Init(); err != nil {
				logrus.Fatalf("Unable to initialize host: %v\n", err)
			}
			var err error
			if d.param.Driver == config.EPD_DRIVER {
				d.panel, err = openEpdPanel(d.param)
			} else {
				d.panel, err = openOledPanel(d.param)
			}
			if err != nil {
				logrus.Fatalf("Unable to initialize %s display: %v\n", d.param.Driver, err)
			}
		default:
			d.panel = nullPanel{}
			d.startSimulation()
		}
	}

	go func() {
		for loop := true; loop; {
			select {
			case <-d.askDone:
				loop = false
			case command := <-d.askCommand:
				command.result <- command.apply(d.panel)
			}
		}
		if err := d.panel.Close(); err != nil {
			logrus.Errorf("Unable to release display: %v", err)
		}
		close(d.stopped)
		d.done <- true
	}()
}

func (d *Display) Stop() {
	logrus.Infof("Stop display device")

	d.askDone <- true
	<-d.done
	d.closeSimulationWindow()
}

func (d *Display) run(op string, apply func(p panel) error) error {
	result := make(chan error, 1)
	select {
	case d.askCommand <- panelCommand{op: op, apply: apply, result: result}:
	case <-d.stopped:
		return &HardwareError{Op: op, Err: ErrDisplayStopped}
	}
	if err := <-result; err != nil {
		return &HardwareError{Op: op, Err: err}
	}
	return nil
}

// Display sends a frame to the panel.
func (d *Display) Display(img image.Image, mode screen.RefreshMode) error {
	if img == nil {
		return &HardwareError{Op: "display", Err: fmt.Errorf("no image")}
	}

	d.lock.Lock()
	d.lastImg = img
	d.lock.Unlock()
	d.invalidateSimulationWindow()

	return d.run("display", func(p panel) error {
		return p.Show(img, mode)
	})
}

// Clear fills the panel with a single color.
func (d *Display) Clear(c color.Color) error {
	blank := image.NewRGBA(image.Rect(0, 0, d.param.Width, d.param.Height))
	draw.Draw(blank, blank.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	d.lock.Lock()
	d.lastImg = blank
	d.lock.Unlock()
	d.invalidateSimulationWindow()

	return d.run("clear", func(p panel) error {
		return p.Clear(c)
	})
}

// Sleep puts the panel in low power mode. The next Display wakes it up.
func (d *Display) Sleep() error {
	return d.run("sleep", func(p panel) error {
		return p.Sleep()
	})
}

// LastImage returns the last frame sent to the panel, nil before the first one.
func (d *Display) LastImage() image.Image {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.lastImg
}

// nullPanel backs the simulation driver: frames only go to the window.
type nullPanel struct{}

func (nullPanel) Show(image.Image, screen.RefreshMode) error { return nil }
func (nullPanel) Clear(color.Color) error                    { return nil }
func (nullPanel) Sleep() error                               { return nil }
func (nullPanel) Close() error                               { return nil }
