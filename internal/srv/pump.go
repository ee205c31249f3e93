package srv

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jypelle/tabelo/apimodel"
	"github.com/jypelle/tabelo/internal/srv/event"
	"github.com/jypelle/tabelo/internal/srv/freshness"
	"github.com/jypelle/tabelo/internal/srv/schedule"
	"github.com/jypelle/tabelo/internal/srv/screen"
	"github.com/jypelle/tabelo/internal/version"
	"github.com/sirupsen/logrus"
)

type PumpState int64

const (
	AWAIT_TICK PumpState = iota
	MAYBE_REFRESH_DATA
	MAYBE_REBUILD_QUEUE
	DRAIN_AND_DISPLAY
	SHUTTING_DOWN
	TERMINATED
)

func (s PumpState) String() string {
	switch s {
	case AWAIT_TICK:
		return "AWAIT_TICK"
	case MAYBE_REFRESH_DATA:
		return "MAYBE_REFRESH_DATA"
	case MAYBE_REBUILD_QUEUE:
		return "MAYBE_REBUILD_QUEUE"
	case DRAIN_AND_DISPLAY:
		return "DRAIN_AND_DISPLAY"
	case SHUTTING_DOWN:
		return "SHUTTING_DOWN"
	case TERMINATED:
		return "TERMINATED"
	}
	return fmt.Sprintf("PumpState(%d)", int64(s))
}

// OutputDriver is the panel as seen by the pump, its only writer.
type OutputDriver interface {
	Display(img image.Image, mode screen.RefreshMode) error
	Clear(c color.Color) error
	Sleep() error
}

// Populator fills the queue of a schedule. It only reads cached data.
type Populator interface {
	Populate(scheduleId string, queue *screen.Queue, now time.Time)
	ErrorScreen(failed *screen.Screen, now time.Time) *screen.Screen
}

type PumpParam struct {
	Scheduler        *schedule.RefreshScheduler
	Dispatcher       *schedule.Dispatcher
	Coordinator      *freshness.Coordinator
	Output           OutputDriver
	Populator        Populator
	Events           <-chan event.ApiEvent
	ButtonEvents     <-chan event.ButtonEvent
	Now              func() time.Time
	FetchConcurrency int
	IdleWait         time.Duration
}

// Pump is the display loop: refresh due data, rebuild the queue when due,
// then show every screen of the pass for its dwell time.
type Pump struct {
	lock          sync.RWMutex
	state         PumpState
	scheduleId    string
	currentScreen string
	rebuildId     string
	rebuiltAt     time.Time
	passLength    int

	scheduler        *schedule.RefreshScheduler
	dispatcher       *schedule.Dispatcher
	coordinator      *freshness.Coordinator
	output           OutputDriver
	populator        Populator
	events           <-chan event.ApiEvent
	buttonEvents     <-chan event.ButtonEvent
	now              func() time.Time
	fetchConcurrency int
	idleWait         time.Duration

	// Owned by the loop goroutine
	queue    *screen.Queue
	pass     []*screen.Screen
	replayed bool

	shutdownOnce sync.Once
}

func NewPump(param PumpParam) *Pump {
	if param.Now == nil {
		param.Now = time.Now
	}
	if param.IdleWait <= 0 {
		param.IdleWait = 5 * time.Second
	}
	return &Pump{
		state:            AWAIT_TICK,
		scheduler:        param.Scheduler,
		dispatcher:       param.Dispatcher,
		coordinator:      param.Coordinator,
		output:           param.Output,
		populator:        param.Populator,
		events:           param.Events,
		buttonEvents:     param.ButtonEvents,
		now:              param.Now,
		fetchConcurrency: param.FetchConcurrency,
		idleWait:         param.IdleWait,
		queue:            screen.NewQueue(),
	}
}

// Run loops until ctx is cancelled, then clears the panel and puts it to sleep.
func (p *Pump) Run(ctx context.Context) {
	logrus.Infof("Start display pump")
	defer p.shutdown()

	for ctx.Err() == nil {
		p.tick(ctx)
	}
}

func (p *Pump) tick(ctx context.Context) {
	p.setState(MAYBE_REFRESH_DATA)
	p.coordinator.RefreshDue(ctx, p.now(), p.fetchConcurrency)
	if ctx.Err() != nil {
		return
	}

	p.setState(MAYBE_REBUILD_QUEUE)
	if now := p.now(); p.scheduler.IsRebuildDue(now) {
		p.rebuild(now)
	}

	p.setState(DRAIN_AND_DISPLAY)
	if screens := p.queue.Drain(); len(screens) > 0 {
		p.setPass(screens)
	}
	if len(p.pass) == 0 {
		p.setState(AWAIT_TICK)
		p.wait(ctx, p.idleWait)
		return
	}
	p.displayPass(ctx)
	p.setState(AWAIT_TICK)
}

func (p *Pump) rebuild(now time.Time) {
	scheduleId := p.dispatcher.Resolve(now)
	rebuildId := uuid.NewString()

	p.queue.Clear()
	p.setPass(nil)
	p.populator.Populate(scheduleId, p.queue, now)
	p.scheduler.MarkRebuilt(now)

	logrus.WithFields(logrus.Fields{
		"schedule": scheduleId,
		"rebuild":  rebuildId,
	}).Infof("Queue rebuilt with %d screens", p.queue.Len())

	p.lock.Lock()
	p.scheduleId = scheduleId
	p.rebuildId = rebuildId
	p.rebuiltAt = now
	p.lock.Unlock()
}

// displayPass shows the screens of the current rebuild in order. Screens are
// drawn once per pass: the first pass uses the bitmaps made at enqueue time,
// later passes of the same rebuild redraw them first.
func (p *Pump) displayPass(ctx context.Context) {
	replay := p.replayed
	p.replayed = true
	displayed := 0
	for _, s := range p.pass {
		if ctx.Err() != nil {
			return
		}
		now := p.now()
		if replay || !s.IsCurrent() {
			s.Render(now)
		}

		shown := s
		if !s.IsCurrent() {
			logrus.WithField("screen", s.Name).Warnf("Screen replaced by an error screen: %v", s.Err())
			shown = p.populator.ErrorScreen(s, now)
			if shown == nil || !shown.IsCurrent() {
				logrus.WithField("screen", s.Name).Errorf("Unable to render the error screen")
				continue
			}
		}

		p.setCurrentScreen(shown.Name)
		logrus.WithFields(logrus.Fields{"screen": shown.Name, "mode": shown.RefreshMode}).Debugf("Display screen")
		if err := p.output.Display(shown.Image(), shown.RefreshMode); err != nil {
			logrus.Errorf("Unable to display screen %s: %v", shown.Name, err)
		}
		displayed++

		switch p.wait(ctx, shown.Dwell) {
		case waitCancelled, waitRebuild:
			return
		}
	}

	// Nothing could be drawn: do not spin on the same pass
	if displayed == 0 {
		p.wait(ctx, p.idleWait)
	}
}

type waitResult int

const (
	waitElapsed waitResult = iota
	waitSkipped
	waitRebuild
	waitCancelled
)

// wait blocks for d, or less when shutdown starts or an api event or a
// button asks for another screen.
func (p *Pump) wait(ctx context.Context, d time.Duration) waitResult {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return waitCancelled
		case <-timer.C:
			return waitElapsed
		case ev := <-p.events:
			switch ev.Data.(type) {
			case event.ApiEventRebuildQueueData:
				ev.Result <- nil
				return p.requestRebuild()
			case event.ApiEventNextScreenData:
				ev.Result <- nil
				return waitSkipped
			default:
				ev.Result <- fmt.Errorf("unsupported event %T", ev.Data)
			}
		case ev := <-p.buttonEvents:
			logrus.Debugf("Button %s clicked", ev.ButtonId)
			if ev.ButtonId == event.REBUILD_BUTTON {
				return p.requestRebuild()
			}
			return waitSkipped
		}
	}
}

func (p *Pump) requestRebuild() waitResult {
	logrus.Infof("Queue rebuild requested")
	p.scheduler.Invalidate(schedule.QueueRebuildTimer)
	return waitRebuild
}

func (p *Pump) shutdown() {
	p.shutdownOnce.Do(func() {
		p.setState(SHUTTING_DOWN)
		logrus.Infof("Stop display pump")

		if err := p.output.Clear(color.White); err != nil {
			logrus.Errorf("Unable to clear display: %v", err)
		}
		if err := p.output.Sleep(); err != nil {
			logrus.Errorf("Unable to put display to sleep: %v", err)
		}

		p.setState(TERMINATED)
	})
}

func (p *Pump) setState(state PumpState) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.state == SHUTTING_DOWN || p.state == TERMINATED {
		if state != TERMINATED {
			return
		}
	}
	p.state = state
}

func (p *Pump) setPass(screens []*screen.Screen) {
	p.pass = screens
	p.replayed = false

	p.lock.Lock()
	defer p.lock.Unlock()
	p.passLength = len(screens)
}

func (p *Pump) setCurrentScreen(name string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.currentScreen = name
}

func (p *Pump) State() PumpState {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.state
}

func (p *Pump) Status() apimodel.Status {
	p.lock.RLock()
	status := apimodel.Status{
		Version:       version.AppVersion.String(),
		State:         p.state.String(),
		Schedule:      p.scheduleId,
		CurrentScreen: p.currentScreen,
		RebuildId:     p.rebuildId,
		RebuiltAt:     apimodel.TimeRef(p.rebuiltAt),
		QueueLength:   p.passLength,
	}
	p.lock.RUnlock()

	for _, source := range p.coordinator.Snapshot() {
		status.Sources = append(status.Sources, apimodel.SourceStatus{
			Id:          source.Id,
			HasValue:    source.HasValue,
			FetchedAt:   apimodel.TimeRef(source.FetchedAt),
			AttemptedAt: apimodel.TimeRef(source.AttemptedAt),
			NextDueAt:   apimodel.TimeRef(source.NextDueAt),
			LastError:   source.LastError,
		})
	}
	return status
}
