package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/bitmapfont/v2"
	"github.com/jypelle/tabelo/internal/srv/provider"
	"github.com/llgcode/draw2d/draw2dimg"
)

const forecastHours = 6

// StopLabel is what a transit screen shows about its stop.
type StopLabel struct {
	Number    string
	Name      string
	Direction string
}

func (s StopLabel) Title() string {
	return s.Number + " - " + s.Name
}

// Message draws a static text below the header, one line per "\n".
func (r *Renderer) Message(h Header, message string) (image.Image, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	img, top := r.newCanvasWithHeader(h)
	maxWidth := r.width - 10

	face := r.face(24)
	lines := wrapText(face, message, maxWidth)
	if len(lines)*lineHeight(face) > r.height-top-5 {
		face = r.face(18)
		lines = wrapText(face, message, maxWidth)
	}
	y := top + 4
	for _, line := range lines {
		addLabel(img, face, 5, y, line)
		y += lineHeight(face)
	}
	return img, nil
}

// Error draws a centered failure notice below the header.
func (r *Renderer) Error(h Header, message string) (image.Image, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	img, top := r.newCanvasWithHeader(h)
	face := r.face(18)
	lines := wrapText(face, message, r.width-10)
	height := len(lines) * lineHeight(face)
	y := top + (r.height-top-height)/2
	for _, line := range lines {
		addCenteredLabel(img, face, 0, r.width, y, line)
		y += lineHeight(face)
	}
	return img, nil
}

// Predictions draws the next arrivals at a stop, one segment per arrival.
func (r *Renderer) Predictions(h Header, stop StopLabel, predictions provider.Predictions, maxArrivals int) (image.Image, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	img, top := r.newCanvasWithHeader(h)
	y := r.addStopTitle(img, top, stop)
	r.addDirection(img, stop)

	labels := ArrivalLabels(predictions.Predictions, h.Now, maxArrivals)
	if len(labels) == 0 {
		message := NoArrivals
		if predictions.Message != "" {
			message = predictions.Message
		}
		addCenteredLabel(img, r.pickFace(message, r.width-10, 18, 14), 0, r.width, y+4, message)
		return img, nil
	}

	face := r.face(24)
	segmentWidth := r.width / len(labels)
	for i, label := range labels {
		x0 := i * segmentWidth
		addCenteredLabel(img, face, x0, x0+segmentWidth, y+2, label)
		if label != Due {
			addCaption(img, x0, x0+segmentWidth, y+2+lineHeight(face), "min")
		}
	}
	return img, nil
}

// Alert draws the service status of a route that is not running normally.
func (r *Renderer) Alert(h Header, stop StopLabel, status string) (image.Image, error) {
	if status == "" {
		return nil, errors.New("empty alert")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	img, top := r.newCanvasWithHeader(h)
	y := r.addStopTitle(img, top, stop)
	r.addDirection(img, stop)

	face := r.face(16)
	for _, line := range wrapText(face, "Alert: "+status, r.width-10) {
		if y+lineHeight(face) > r.height-lineHeight(r.face(14)) {
			break
		}
		addCenteredLabel(img, face, 0, r.width, y+4, line)
		y += lineHeight(face)
	}
	return img, nil
}

// Weather draws the current conditions with today's high and low.
func (r *Renderer) Weather(h Header, location string, weather provider.Weather) (image.Image, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	img, top := r.newCanvasWithHeader(h)
	unit := weather.TemperatureUnit()

	locationFace := r.face(22)
	temperatureFace := r.face(34)
	descriptionFace := r.face(16)
	highLowFace := r.face(14)

	description := capitalize(weather.Current.Description)
	highLow := fmt.Sprintf("H: %d°%s L: %d°%s", round(weather.High), unit, round(weather.Low), unit)

	// Right column: icon, description, high and low
	iconSize := r.height - top - lineHeight(descriptionFace) - lineHeight(highLowFace) - 5
	if iconSize < 8 {
		iconSize = 8
	}
	iconY := top + 3
	addIcon(img, IconName(weather.Current.Icon), r.width-iconSize-5, iconY, iconSize)

	halfWidth := r.width/2 - 5
	description = fitText(descriptionFace, description, halfWidth)
	descriptionY := iconY + iconSize
	addLabel(img, descriptionFace, r.width-textWidth(descriptionFace, description)-5, descriptionY, description)
	highLow = fitText(highLowFace, highLow, r.width-10)
	addLabel(img, highLowFace, r.width-textWidth(highLowFace, highLow)-5, descriptionY+lineHeight(descriptionFace), highLow)

	// Left column: location and temperature
	leftWidth := r.width - iconSize - 15
	if leftWidth > halfWidth {
		leftWidth = halfWidth
	}
	addLabel(img, locationFace, 5, top+3, fitText(locationFace, location, leftWidth))
	temperature := fmt.Sprintf("%d°%s", round(weather.Temperature), unit)
	addLabel(img, temperatureFace, 5, top+3+lineHeight(locationFace), fitText(temperatureFace, temperature, leftWidth))

	return img, nil
}

// Forecast draws the next hours (hour, icon, temperature) and a temperature curve.
func (r *Renderer) Forecast(h Header, weather provider.Weather) (image.Image, error) {
	hours := weather.Hourly
	if len(hours) > forecastHours {
		hours = hours[:forecastHours]
	}
	if len(hours) == 0 {
		return nil, errors.New("no hourly forecast")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	img, top := r.newCanvasWithHeader(h)
	columnWidth := r.width / forecastHours
	iconSize := r.height / 5
	temperatureFace := r.face(16)

	hourY := top + 3
	iconY := hourY + lineHeight(bitmapfont.Face) + 2
	temperatureY := iconY + iconSize + 2

	for i, hour := range hours {
		x0 := i * columnWidth
		addCaption(img, x0, x0+columnWidth, hourY, fmt.Sprintf("%d", hour.At.In(r.location).Hour()))
		addIcon(img, IconName(hour.Icon), x0+(columnWidth-iconSize)/2, iconY, iconSize)
		addCenteredLabel(img, temperatureFace, x0, x0+columnWidth, temperatureY, fmt.Sprintf("%d°", round(hour.Temperature)))
	}

	curveTop := temperatureY + lineHeight(temperatureFace) + 1
	curveBottom := r.height - 2
	if len(hours) > 1 && curveBottom-curveTop >= 3 {
		drawTemperatureCurve(img, hours, columnWidth, curveTop, curveBottom)
	}

	return img, nil
}

// drawTemperatureCurve joins the hourly temperatures with a polyline scaled
// to the [top, bottom] band.
func drawTemperatureCurve(img *image.RGBA, hours []provider.HourlyForecast, columnWidth, top, bottom int) {
	low, high := hours[0].Temperature, hours[0].Temperature
	for _, hour := range hours {
		if hour.Temperature < low {
			low = hour.Temperature
		}
		if hour.Temperature > high {
			high = hour.Temperature
		}
	}
	y := func(temperature float64) float64 {
		if high == low {
			return float64(top+bottom) / 2
		}
		return float64(bottom) - (temperature-low)/(high-low)*float64(bottom-top)
	}

	gc := draw2dimg.NewGraphicContext(img)
	gc.SetStrokeColor(color.Black)
	gc.SetLineWidth(1.5)
	gc.BeginPath()
	for i, hour := range hours {
		x := float64(i*columnWidth) + float64(columnWidth)/2
		if i == 0 {
			gc.MoveTo(x, y(hour.Temperature))
		} else {
			gc.LineTo(x, y(hour.Temperature))
		}
	}
	gc.Stroke()
}

func (r *Renderer) addStopTitle(img *image.RGBA, top int, stop StopLabel) int {
	title := stop.Title()
	face := r.pickFace(title, r.width-4, 18, 16, 14)
	addCenteredLabel(img, face, 0, r.width, top, title)
	return top + lineHeight(face)
}

func (r *Renderer) addDirection(img *image.RGBA, stop StopLabel) {
	if stop.Direction == "" {
		return
	}
	face := r.face(14)
	addCenteredLabel(img, face, 0, r.width, r.height-lineHeight(face)-1, stop.Direction)
}
