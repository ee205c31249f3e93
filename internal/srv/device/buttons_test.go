package device

import (
	"testing"
	"time"

	"github.com/jypelle/tabelo/internal/srv/config"
	"github.com/jypelle/tabelo/internal/srv/event"
	"periph.io/x/conn/v3/gpio"
)

type fakePin struct {
	level gpio.Level
}

func (p *fakePin) Read() gpio.Level {
	return p.level
}

func TestButtonClick(t *testing.T) {
	pin := &fakePin{level: gpio.High}
	button := &Button{buttonId: event.NEXT_BUTTON, pin: pin}
	start := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)

	steps := []struct {
		level gpio.Level
		after time.Duration
		click bool
	}{
		{gpio.High, 0, false},
		{gpio.Low, 5 * time.Millisecond, false},
		{gpio.Low, 60 * time.Millisecond, false},
		{gpio.High, 80 * time.Millisecond, true},
		{gpio.High, 100 * time.Millisecond, false},
		// Bounce shorter than the debounce delay
		{gpio.Low, 200 * time.Millisecond, false},
		{gpio.High, 210 * time.Millisecond, false},
	}
	for i, step := range steps {
		pin.level = step.level
		if got := button.Refresh(start.Add(step.after)); got != step.click {
			t.Errorf("step %d: click = %v, want %v", i, got, step.click)
		}
	}
}

func TestButtonsSendDoesNotBlock(t *testing.T) {
	buttons := NewButtons(config.ButtonsParam{})
	if buttons.Enabled() {
		t.Errorf("no pin configured, buttons should be disabled")
	}

	done := make(chan bool)
	go func() {
		buttons.send(event.ButtonEvent{ButtonId: event.REBUILD_BUTTON})
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked without a reader")
	}
}
