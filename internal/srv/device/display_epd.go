package device

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/screen"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"
)

// epdPanel drives a Waveshare 2.13" V4 e-paper HAT.
type epdPanel struct {
	spiPort  spi.PortCloser
	dev      *waveshare2in13v4.Dev
	rotate   bool
	sleeping bool
}

func openEpdPanel(param config.DisplayParam) (*epdPanel, error) {
	spiPort, err := spireg.Open(param.SpiPort)
	if err != nil {
		return nil, err
	}

	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(spiPort, &opts)
	if err != nil {
		spiPort.Close()
		return nil, err
	}
	if err := dev.Init(); err != nil {
		spiPort.Close()
		return nil, err
	}
	logrus.Debugf("E-paper panel ready, bounds %v", dev.Bounds())

	return &epdPanel{
		spiPort: spiPort,
		dev:     dev,
		rotate:  param.Rotate,
	}, nil
}

// Show draws a frame. A full refresh re-runs the init sequence, which also
// wakes the controller up; a partial refresh only writes the frame.
func (p *epdPanel) Show(img image.Image, mode screen.RefreshMode) error {
	if p.sleeping || mode == screen.FULL_REFRESH {
		if err := p.dev.Init(); err != nil {
			return err
		}
		p.sleeping = false
	}

	src := img
	if p.rotate {
		src = toPortrait(img)
	}
	frame := image1bit.NewVerticalLSB(p.dev.Bounds())
	draw.Draw(frame, frame.Bounds(), src, src.Bounds().Min, draw.Src)
	return p.dev.Draw(p.dev.Bounds(), frame, image.Point{})
}

func (p *epdPanel) Clear(c color.Color) error {
	if p.sleeping {
		if err := p.dev.Init(); err != nil {
			return err
		}
		p.sleeping = false
	}
	return p.dev.Clear(c)
}

func (p *epdPanel) Sleep() error {
	if p.sleeping {
		return nil
	}
	if err := p.dev.Sleep(); err != nil {
		return err
	}
	p.sleeping = true
	return nil
}

func (p *epdPanel) Close() error {
	if err := p.dev.Halt(); err != nil {
		logrus.Warnf("Unable to halt e-paper panel: %v", err)
	}
	return p.spiPort.Close()
}
