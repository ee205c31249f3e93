package images

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const (
	SUN_ICON       = "sun"
	MOON_ICON      = "moon"
	CLOUD_SUN_ICON = "cloud_sun"
	CLOUD_ICON     = "cloud"
	RAIN_ICON      = "rain"
	THUNDER_ICON   = "thunder"
	SNOW_ICON      = "snow"
	MIST_ICON      = "mist"
)

//go:embed sun.svg
var SunSvgFile []byte

//go:embed moon.svg
var MoonSvgFile []byte

//go:embed cloud_sun.svg
var CloudSunSvgFile []byte

//go:embed cloud.svg
var CloudSvgFile []byte

//go:embed rain.svg
var RainSvgFile []byte

//go:embed thunder.svg
var ThunderSvgFile []byte

//go:embed snow.svg
var SnowSvgFile []byte

//go:embed mist.svg
var MistSvgFile []byte

var icons map[string]*oksvg.SvgIcon

type iconKey struct {
	name string
	size int
}

var (
	cacheLock sync.Mutex
	cache     = make(map[iconKey]*image.RGBA)
)

func init() {
	// Parse icons
	icons = make(map[string]*oksvg.SvgIcon)
	for name, svgFile := range map[string][]byte{
		SUN_ICON:       SunSvgFile,
		MOON_ICON:      MoonSvgFile,
		CLOUD_SUN_ICON: CloudSunSvgFile,
		CLOUD_ICON:     CloudSvgFile,
		RAIN_ICON:      RainSvgFile,
		THUNDER_ICON:   ThunderSvgFile,
		SNOW_ICON:      SnowSvgFile,
		MIST_ICON:      MistSvgFile,
	} {
		icon, err := oksvg.ReadIconStream(bytes.NewReader(svgFile))
		if err != nil {
			logrus.Panicf("Can't load %s icon: %v", name, err)
		}
		icons[name] = icon
	}
}

// Icon rasterizes a named icon into a size x size transparent image.
// Results are cached and must not be modified.
func Icon(name string, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid icon size %d", size)
	}

	cacheLock.Lock()
	defer cacheLock.Unlock()

	key := iconKey{name: name, size: size}
	if img, ok := cache[key]; ok {
		return img, nil
	}

	icon, ok := icons[name]
	if !ok {
		return nil, fmt.Errorf("unknown icon %s", name)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	icon.SetTarget(0, 0, float64(size), float64(size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	dasher := rasterx.NewDasher(size, size, scanner)
	icon.Draw(dasher, 1.0)

	cache[key] = img
	return img, nil
}
