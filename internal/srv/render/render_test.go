package render

import (
	"image"
	"image/color"
	"reflect"
	"testing"
	"time"

	"github.com/jypelle/tabelo/internal/images"
	"github.com/jypelle/tabelo/internal/srv/provider"
)

var now = time.Date(2024, 6, 3, 7, 0, 30, 0, time.UTC)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultWidth, DefaultHeight, time.UTC)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r
}

func testWeather() *provider.Weather {
	return &provider.Weather{
		Temperature: 71.6,
		Current:     provider.Conditions{Main: "Clouds", Description: "broken clouds", Icon: "04d"},
		High:        77.9,
		Low:         58.2,
		Units:       "imperial",
		Hourly: []provider.HourlyForecast{
			{At: now.Add(1 * time.Hour), Temperature: 70, Icon: "04d"},
			{At: now.Add(2 * time.Hour), Temperature: 72, Icon: "01d"},
			{At: now.Add(3 * time.Hour), Temperature: 75, Icon: "10d"},
			{At: now.Add(4 * time.Hour), Temperature: 74, Icon: "11d"},
			{At: now.Add(5 * time.Hour), Temperature: 71, Icon: "13d"},
			{At: now.Add(6 * time.Hour), Temperature: 69, Icon: "50d"},
			{At: now.Add(7 * time.Hour), Temperature: 66, Icon: "01n"},
		},
	}
}

func TestArrivalLabels(t *testing.T) {
	at := func(d time.Duration, delayed bool) provider.Prediction {
		return provider.Prediction{ArrivalAt: now.Add(d), Delayed: delayed}
	}

	tests := []struct {
		name        string
		predictions []provider.Prediction
		max         int
		want        []string
	}{
		{"none", nil, 3, nil},
		{"due under a minute", []provider.Prediction{at(59*time.Second, false)}, 3, []string{Due}},
		{"already passed", []provider.Prediction{at(-2*time.Minute, false)}, 3, []string{Due}},
		{"floored", []provider.Prediction{at(4*time.Minute+59*time.Second, false)}, 3, []string{"4"}},
		{
			"delayed skipped",
			[]provider.Prediction{at(2*time.Minute, true), at(7*time.Minute, false)},
			3,
			[]string{"7"},
		},
		{
			"capped",
			[]provider.Prediction{at(1*time.Minute, false), at(5*time.Minute, false), at(9*time.Minute, false), at(14*time.Minute, false)},
			3,
			[]string{"1", "5", "9"},
		},
		{
			"default cap",
			[]provider.Prediction{at(1*time.Minute, false), at(5*time.Minute, false), at(9*time.Minute, false), at(14*time.Minute, false)},
			0,
			[]string{"1", "5", "9"},
		},
		{"all delayed", []provider.Prediction{at(3*time.Minute, true)}, 3, nil},
	}
	for _, tt := range tests {
		if got := ArrivalLabels(tt.predictions, now, tt.max); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: ArrivalLabels() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScreensAreBounded(t *testing.T) {
	r := newTestRenderer(t)
	h := Header{Now: now, Weather: testWeather()}
	stop := StopLabel{Number: "X9", Name: "Ashland & Division", Direction: "Southbound"}

	screens := map[string]func() (image.Image, error){
		"message": func() (image.Image, error) {
			return r.Message(h, "I love you\n        - Alan")
		},
		"error": func() (image.Image, error) {
			return r.Error(h, "Error retrieving bus times")
		},
		"predictions": func() (image.Image, error) {
			return r.Predictions(h, stop, provider.Predictions{Predictions: []provider.Prediction{{ArrivalAt: now.Add(5 * time.Minute)}}}, 3)
		},
		"no arrivals": func() (image.Image, error) {
			return r.Predictions(h, stop, provider.Predictions{}, 3)
		},
		"api message": func() (image.Image, error) {
			return r.Predictions(h, stop, provider.Predictions{Message: "No service scheduled"}, 3)
		},
		"alert": func() (image.Image, error) {
			return r.Alert(h, stop, "Bus Reroute")
		},
		"weather": func() (image.Image, error) {
			return r.Weather(h, "Chicago", *h.Weather)
		},
		"forecast": func() (image.Image, error) {
			return r.Forecast(h, *h.Weather)
		},
		"no header": func() (image.Image, error) {
			return r.Message(Header{Now: now}, "Get some sleep,\n    good night! Zzz")
		},
	}
	for name, render := range screens {
		img, err := render()
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if img.Bounds() != image.Rect(0, 0, DefaultWidth, DefaultHeight) {
			t.Errorf("%s: bounds = %v", name, img.Bounds())
		}
		// Header separator
		if c := color.GrayModel.Convert(img.At(DefaultWidth/2, DefaultHeight/3)).(color.Gray); c.Y != 0 {
			t.Errorf("%s: header line missing", name)
		}
		if !hasInkBelow(img, DefaultHeight/3+1) {
			t.Errorf("%s: nothing drawn below the header", name)
		}
	}
}

func TestScreenFailures(t *testing.T) {
	r := newTestRenderer(t)
	h := Header{Now: now}

	if _, err := r.Forecast(h, provider.Weather{}); err == nil {
		t.Errorf("forecast without hours should fail")
	}
	if _, err := r.Alert(h, StopLabel{Number: "9", Name: "Ashland & Blackhawk"}, ""); err == nil {
		t.Errorf("empty alert should fail")
	}
	if _, err := NewRenderer(0, 122, nil); err == nil {
		t.Errorf("empty canvas accepted")
	}
}

func TestIconName(t *testing.T) {
	tests := map[string]string{
		"01d": images.SUN_ICON,
		"01n": images.MOON_ICON,
		"02d": images.CLOUD_SUN_ICON,
		"04n": images.CLOUD_ICON,
		"09d": images.RAIN_ICON,
		"10n": images.RAIN_ICON,
		"11d": images.THUNDER_ICON,
		"13d": images.SNOW_ICON,
		"50n": images.MIST_ICON,
		"":    images.CLOUD_ICON,
		"99x": images.CLOUD_ICON,
	}
	for code, want := range tests {
		if got := IconName(code); got != want {
			t.Errorf("IconName(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestWrapAndFitText(t *testing.T) {
	r := newTestRenderer(t)
	face := r.face(18)

	lines := wrapText(face, "Error retrieving bus times from the transit service", DefaultWidth-10)
	if len(lines) < 2 {
		t.Errorf("long message not wrapped: %v", lines)
	}
	for _, line := range lines {
		if textWidth(face, line) > DefaultWidth-10 {
			t.Errorf("line %q too wide", line)
		}
	}

	if got := wrapText(face, "I love you\n        - Alan", DefaultWidth-10); len(got) != 2 || got[1] != "        - Alan" {
		t.Errorf("indentation not kept: %q", got)
	}

	fitted := fitText(face, "A very long stop name that cannot fit on the panel", 100)
	if textWidth(face, fitted) > 100 || len(fitted) == 0 {
		t.Errorf("fitText() = %q", fitted)
	}
	if fitText(face, "short", 0) != "" {
		t.Errorf("fitText() with no room should be empty")
	}
}

func hasInkBelow(img image.Image, top int) bool {
	b := img.Bounds()
	for y := top; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				return true
			}
		}
	}
	return false
}
