package device

import (
	"image"
	"image/color"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/screen"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
)

// oledPanel drives a 128x64 ssd1306. Frames are scaled down to fit.
type oledPanel struct {
	i2cBus   i2c.BusCloser
	dev      *ssd1306.Dev
	sleeping bool
}

func openOledPanel(param config.DisplayParam) (*oledPanel, error) {
	i2cBus, err := i2creg.Open(param.I2cBus)
	if err != nil {
		return nil, err
	}

	dev, err := ssd1306.NewI2C(i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		i2cBus.Close()
		return nil, err
	}
	dev.SetContrast(1)

	return &oledPanel{
		i2cBus: i2cBus,
		dev:    dev,
	}, nil
}

func (p *oledPanel) wake() error {
	if !p.sleeping {
		return nil
	}
	// Draw alone does not turn the panel back on
	if err := p.dev.SetContrast(1); err != nil {
		return err
	}
	p.sleeping = false
	return nil
}

func (p *oledPanel) Show(img image.Image, _ screen.RefreshMode) error {
	if err := p.wake(); err != nil {
		return err
	}
	return p.dev.Draw(p.dev.Bounds(), scaleTo(img, p.dev.Bounds()), image.Point{})
}

func (p *oledPanel) Clear(c color.Color) error {
	if err := p.wake(); err != nil {
		return err
	}
	return p.dev.Draw(p.dev.Bounds(), image.NewUniform(c), image.Point{})
}

func (p *oledPanel) Sleep() error {
	if err := p.dev.Halt(); err != nil {
		return err
	}
	p.sleeping = true
	return nil
}

func (p *oledPanel) Close() error {
	return p.i2cBus.Close()
}
