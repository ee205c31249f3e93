package screen

import (
	"fmt"
	"image"
	"strings"
	"time"
)

type RefreshMode int64

const (
	FULL_REFRESH RefreshMode = iota
	PARTIAL_REFRESH
)

func (m RefreshMode) String() string {
	switch m {
	case PARTIAL_REFRESH:
		return "partial"
	default:
		return "full"
	}
}

func ParseRefreshMode(value string) (RefreshMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "full":
		return FULL_REFRESH, nil
	case "partial":
		return PARTIAL_REFRESH, nil
	}
	return FULL_REFRESH, fmt.Errorf("unknown refresh mode %q", value)
}

func (m *RefreshMode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}
	mode, err := ParseRefreshMode(value)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

func (m RefreshMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// Kind classifies a screen for logs, status and tests.
type Kind string

const (
	MESSAGE_KIND     Kind = "message"
	PREDICTIONS_KIND Kind = "predictions"
	ALERT_KIND       Kind = "alert"
	WEATHER_KIND     Kind = "weather"
	FORECAST_KIND    Kind = "forecast"
	ERROR_KIND       Kind = "error"
)

// Renderer produces the bitmap of one screen from already fetched data.
type Renderer func() (image.Image, error)

// RenderError reports a renderer that failed or panicked.
type RenderError struct {
	Screen string
	Err    error
}

func (e *RenderError) Error() string {
	return "render " + e.Screen + ": " + e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Screen is one timed unit of display work. Its bitmap is produced once, when
// the screen is created, so what is shown matches the data at enqueue time.
type Screen struct {
	Name        string
	Kind        Kind
	RefreshMode RefreshMode
	Dwell       time.Duration

	renderer       Renderer
	img            image.Image
	err            error
	lastRenderedAt time.Time
}

func New(name string, kind Kind, renderer Renderer, refreshMode RefreshMode, dwell time.Duration, now time.Time) *Screen {
	if dwell < 0 {
		dwell = 0
	}
	s := &Screen{
		Name:        name,
		Kind:        kind,
		RefreshMode: refreshMode,
		Dwell:       dwell,
		renderer:    renderer,
	}
	s.Render(now)
	return s
}

// Render (re)generates the bitmap. A panicking renderer is turned into a RenderError.
func (s *Screen) Render(now time.Time) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RenderError{Screen: s.Name, Err: fmt.Errorf("panic: %v", rec)}
			s.img = nil
			s.err = err
		}
		s.lastRenderedAt = now
	}()

	if s.renderer == nil {
		s.img = nil
		s.err = &RenderError{Screen: s.Name, Err: fmt.Errorf("no renderer")}
		return s.err
	}

	img, renderErr := s.renderer()
	if renderErr == nil && img == nil {
		renderErr = fmt.Errorf("renderer returned no image")
	}
	if renderErr != nil {
		s.img = nil
		s.err = &RenderError{Screen: s.Name, Err: renderErr}
		return s.err
	}
	s.img = img
	s.err = nil
	return nil
}

// IsCurrent reports whether a usable bitmap is available.
func (s *Screen) IsCurrent() bool {
	return s.img != nil && s.err == nil
}

func (s *Screen) Image() image.Image {
	return s.img
}

func (s *Screen) Err() error {
	return s.err
}

func (s *Screen) LastRenderedAt() time.Time {
	return s.lastRenderedAt
}
