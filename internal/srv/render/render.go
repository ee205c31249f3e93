// Package render draws the screens of the display. Every screen shares a
// header (clock, current weather) over the top third of the canvas and is
// drawn black on white for a one bit panel.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hajimehoshi/bitmapfont/v2"
	"github.com/jypelle/tabelo/internal/images"
	"github.com/jypelle/tabelo/internal/srv/provider"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultWidth  = 250
	DefaultHeight = 122
)

var faceSizes = []int{10, 14, 16, 18, 20, 22, 24, 34}

var (
	ink   = image.NewUniform(color.Black)
	paper = image.NewUniform(color.White)
)

// Header is the data shown on top of every screen.
type Header struct {
	Now     time.Time
	Weather *provider.Weather
}

// Renderer holds the font faces. Faces are not safe for concurrent use, so
// each screen is drawn under lock.
type Renderer struct {
	lock     sync.Mutex
	width    int
	height   int
	location *time.Location
	faces    map[int]font.Face
}

func NewRenderer(width, height int, location *time.Location) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	if location == nil {
		location = time.Local
	}

	ttfFont, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("unable to parse font: %w", err)
	}

	r := &Renderer{
		width:    width,
		height:   height,
		location: location,
		faces:    make(map[int]font.Face),
	}
	for _, size := range faceSizes {
		face, err := opentype.NewFace(ttfFont, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to create %dpt face: %w", size, err)
		}
		r.faces[size] = face
	}
	return r, nil
}

func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.width, r.height)
}

func (r *Renderer) face(size int) font.Face {
	return r.faces[size]
}

func (r *Renderer) headerHeight() int {
	return r.height / 3
}

func (r *Renderer) newCanvas() *image.RGBA {
	img := image.NewRGBA(r.Bounds())
	draw.Draw(img, img.Bounds(), paper, image.Point{}, draw.Src)
	return img
}

// newCanvasWithHeader draws the shared header and returns the top of the
// free area below it.
func (r *Renderer) newCanvasWithHeader(h Header) (*image.RGBA, int) {
	img := r.newCanvas()
	headerHeight := r.headerHeight()

	clock := h.Now.In(r.location).Format("15:04")
	clockFace := r.face(20)
	clockWidth := textWidth(clockFace, clock)
	addLabel(img, clockFace, (r.width-clockWidth)/2, (headerHeight-lineHeight(clockFace))/2, clock)

	if h.Weather != nil {
		iconSize := headerHeight / 2
		iconX := 5
		iconY := (headerHeight - iconSize) / 2
		addIcon(img, IconName(h.Weather.Current.Icon), iconX, iconY, iconSize)

		smallFace := r.face(10)
		textX := iconX + iconSize + 5
		maxWidth := (r.width-clockWidth)/2 - textX - 2
		temperature := fmt.Sprintf("%d°", round(h.Weather.Temperature))
		addLabel(img, smallFace, textX, iconY, fitText(smallFace, temperature, maxWidth))
		addLabel(img, smallFace, textX, iconY+lineHeight(smallFace), fitText(smallFace, h.Weather.Current.Main, maxWidth))
	}

	draw.Draw(img, image.Rect(0, headerHeight, r.width, headerHeight+1), ink, image.Point{}, draw.Src)
	return img, headerHeight + 1
}

// IconName maps an OpenWeatherMap icon code ("01d", "10n"...) to an embedded icon.
func IconName(code string) string {
	if len(code) < 2 {
		return images.CLOUD_ICON
	}
	switch code[:2] {
	case "01":
		if strings.HasSuffix(code, "n") {
			return images.MOON_ICON
		}
		return images.SUN_ICON
	case "02":
		return images.CLOUD_SUN_ICON
	case "03", "04":
		return images.CLOUD_ICON
	case "09", "10":
		return images.RAIN_ICON
	case "11":
		return images.THUNDER_ICON
	case "13":
		return images.SNOW_ICON
	case "50":
		return images.MIST_ICON
	}
	return images.CLOUD_ICON
}

func addIcon(img draw.Image, name string, x, y, size int) {
	icon, err := images.Icon(name, size)
	if err != nil {
		return
	}
	draw.Draw(img, image.Rect(x, y, x+size, y+size), icon, image.Point{}, draw.Over)
}

// addLabel draws text with its top left corner at (x, top).
func addLabel(img draw.Image, face font.Face, x, top int, label string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  ink,
		Face: face,
		Dot:  fixed.P(x, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(label)
}

func addCenteredLabel(img draw.Image, face font.Face, x0, x1, top int, label string) {
	label = fitText(face, label, x1-x0)
	addLabel(img, face, x0+(x1-x0-textWidth(face, label))/2, top, label)
}

// addCaption draws a small label with the bitmap font.
func addCaption(img draw.Image, x0, x1, top int, label string) {
	addCenteredLabel(img, bitmapfont.Face, x0, x1, top, label)
}

func textWidth(face font.Face, text string) int {
	return font.MeasureString(face, text).Ceil()
}

func lineHeight(face font.Face) int {
	metrics := face.Metrics()
	return metrics.Ascent.Ceil() + metrics.Descent.Ceil()
}

// fitText shortens text with an ellipsis until it fits maxWidth.
func fitText(face font.Face, text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if textWidth(face, text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := strings.TrimRightFunc(string(runes), unicode.IsSpace) + "..."
		if textWidth(face, candidate) <= maxWidth {
			return candidate
		}
	}
	return ""
}

// pickFace returns the first face in which text fits, or the last one.
func (r *Renderer) pickFace(text string, maxWidth int, sizes ...int) font.Face {
	for _, size := range sizes {
		if textWidth(r.face(size), text) <= maxWidth {
			return r.face(size)
		}
	}
	return r.face(sizes[len(sizes)-1])
}

// wrapText splits text on new lines, then wraps each line on spaces so it
// fits maxWidth. Leading indentation of a line that already fits is kept.
func wrapText(face font.Face, text string, maxWidth int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if textWidth(face, paragraph) <= maxWidth {
			lines = append(lines, paragraph)
			continue
		}
		current := ""
		for _, word := range strings.Fields(paragraph) {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if current != "" && textWidth(face, candidate) > maxWidth {
				lines = append(lines, current)
				candidate = word
			}
			current = candidate
		}
		if current != "" {
			lines = append(lines, fitText(face, current, maxWidth))
		}
	}
	return lines
}

func round(value float64) int {
	return int(math.Round(value))
}

func capitalize(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return text
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
