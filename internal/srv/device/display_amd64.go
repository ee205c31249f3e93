package device

import (
	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"github.com/sirupsen/logrus"
)

type simulationWindow struct {
	window *app.Window
}

func (d *Display) startSimulation() {
	width, height := d.param.Width, d.param.Height
	d.simulationWindow = &simulationWindow{
		window: app.NewWindow(
			app.Title("tabelo"),
			app.Size(unit.Px(float32(width*2)), unit.Px(float32(height*2))),
			app.MinSize(unit.Px(float32(width)), unit.Px(float32(height))),
		),
	}
	go func() {
		if err := d.gioloop(); err != nil {
			logrus.Errorf("Simulation window closed: %v", err)
		}
	}()
	go app.Main()
}

func (d *Display) invalidateSimulationWindow() {
	if d.simulationWindow != nil {
		d.simulationWindow.window.Invalidate()
	}
}

func (d *Display) closeSimulationWindow() {
	if d.simulationWindow != nil {
		d.simulationWindow.window.Close()
	}
}

func (d *Display) gioloop() error {
	var ops op.Ops
	for {
		e := <-d.simulationWindow.window.Events()
		switch e := e.(type) {
		case system.DestroyEvent:
			return e.Err
		case system.FrameEvent:
			gtx := layout.NewContext(&ops, e)

			lastImg := d.LastImage()
			if lastImg != nil {
				img := widget.Image{Src: paint.NewImageOp(lastImg), Fit: widget.Contain}
				img.Layout(gtx)
			}
			e.Frame(gtx.Ops)
		}
	}
}
