package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/event"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// debounceDelay is how long a pin must stay pressed to count as a click.
const debounceDelay = 50 * time.Millisecond

type pinReader interface {
	Read() gpio.Level
}

type Button struct {
	buttonId  event.ButtonId
	pin       pinReader
	isPressed bool
	pressedAt time.Time
}

func NewButton(buttonId event.ButtonId, name string) (*Button, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, &HardwareError{Op: "button " + name, Err: fmt.Errorf("pin not found")}
	}

	// Set it as input, with an internal pull up resistor:
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, &HardwareError{Op: "button " + name, Err: err}
	}
	return &Button{buttonId: buttonId, pin: pin}, nil
}

// Refresh samples the pin and reports a click, sent on release.
func (b *Button) Refresh(now time.Time) bool {
	wasPressed := b.isPressed
	b.isPressed = bool(!b.pin.Read())

	switch {
	case b.isPressed && !wasPressed:
		b.pressedAt = now
	case !b.isPressed && wasPressed:
		return now.Sub(b.pressedAt) >= debounceDelay
	}
	return false
}

// Buttons polls the push buttons and turns clicks into events for the
// display pump.
type Buttons struct {
	lock         sync.RWMutex
	eventChannel chan event.ButtonEvent
	param        config.ButtonsParam

	buttons []*Button

	checkTicker *time.Ticker

	askDone chan bool
	done    chan bool
}

func NewButtons(param config.ButtonsParam) *Buttons {
	return &Buttons{
		eventChannel: make(chan event.ButtonEvent),
		param:        param,
		askDone:      make(chan bool),
		done:         make(chan bool),
	}
}

// Enabled reports whether at least one button is configured.
func (d *Buttons) Enabled() bool {
	return d.param.Next != "" || d.param.Rebuild != ""
}

func (d *Buttons) Start() {
	logrus.Infof("Start buttons device")

	d.lock.Lock()
	defer d.lock.Unlock()

	if _, err := host.Init(); err != nil {
		logrus.Fatalf("Unable to initialize host: %v\n", err)
	}
	for buttonId, name := range map[event.ButtonId]string{event.NEXT_BUTTON: d.param.Next, event.REBUILD_BUTTON: d.param.Rebuild} {
		if name == "" {
			continue
		}
		button, err := NewButton(buttonId, name)
		if err != nil {
			logrus.Errorf("Button %s disabled: %v", buttonId, err)
			continue
		}
		d.buttons = append(d.buttons, button)
	}

	// Start periodic check
	d.checkTicker = time.NewTicker(5 * time.Millisecond)
	go func() {
		for loop := true; loop; {
			select {
			case now := <-d.checkTicker.C:
				for _, button := range d.buttons {
					if button.Refresh(now) {
						d.send(event.ButtonEvent{ButtonId: button.buttonId})
					}
				}
			case <-d.askDone:
				loop = false
			}
		}
		d.done <- true
	}()
}

// send drops the click when the pump is busy, as a pressed button must not
// stall the polling.
func (d *Buttons) send(ev event.ButtonEvent) {
	select {
	case d.eventChannel <- ev:
	default:
		logrus.Debugf("Button %s ignored, display pump busy", ev.ButtonId)
	}
}

func (d *Buttons) StopSendingEvent() {
	logrus.Infof("Stop buttons device")

	d.lock.Lock()
	defer d.lock.Unlock()

	d.checkTicker.Stop()
	d.askDone <- true
	<-d.done
}

func (d *Buttons) EventChannel() <-chan event.ButtonEvent {
	return d.eventChannel
}
