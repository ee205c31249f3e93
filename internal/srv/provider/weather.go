package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultWeatherUrl = "https://api.openweathermap.org/data/3.0/onecall"

type Conditions struct {
	Main        string `yaml:"main"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
}

type HourlyForecast struct {
	At          time.Time `yaml:"at"`
	Temperature float64   `yaml:"temperature"`
	Icon        string    `yaml:"icon"`
}

type Weather struct {
	Temperature float64          `yaml:"temperature"`
	Current     Conditions       `yaml:"current"`
	High        float64          `yaml:"high"`
	Low         float64          `yaml:"low"`
	Hourly      []HourlyForecast `yaml:"hourly"`
	Units       string           `yaml:"units"`
}

// TemperatureUnit returns the symbol matching the requested units.
func (w Weather) TemperatureUnit() string {
	switch w.Units {
	case "metric":
		return "C"
	case "standard":
		return "K"
	default:
		return "F"
	}
}

type WeatherClient struct {
	url      string
	apiKey   string
	lat, lon float64
	units    string
	client   *http.Client
}

func NewWeatherClient(weatherUrl, apiKey string, lat, lon float64, units string, timeout time.Duration) *WeatherClient {
	if weatherUrl == "" {
		weatherUrl = DefaultWeatherUrl
	}
	if units == "" {
		units = "imperial"
	}
	return &WeatherClient{
		url:    weatherUrl,
		apiKey: apiKey,
		lat:    lat,
		lon:    lon,
		units:  units,
		client: newHttpClient(timeout),
	}
}

type oneCallCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type oneCallResponse struct {
	Current *struct {
		Temp    float64            `json:"temp"`
		Weather []oneCallCondition `json:"weather"`
	} `json:"current"`
	Hourly []struct {
		Dt      int64              `json:"dt"`
		Temp    float64            `json:"temp"`
		Weather []oneCallCondition `json:"weather"`
	} `json:"hourly"`
	Daily []struct {
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
	} `json:"daily"`
}

func (c *WeatherClient) Weather(ctx context.Context) (Weather, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	query.Set("units", c.units)
	query.Set("exclude", "minutely")
	query.Set("appid", c.apiKey)

	body, err := get(ctx, c.client, c.url+"?"+query.Encode())
	if err != nil {
		return Weather{}, err
	}

	var resp oneCallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Weather{}, fmt.Errorf("unable to decode weather: %w", err)
	}
	if resp.Current == nil || len(resp.Current.Weather) == 0 {
		return Weather{}, fmt.Errorf("weather answer has no current conditions")
	}
	if len(resp.Daily) == 0 {
		return Weather{}, fmt.Errorf("weather answer has no daily forecast")
	}

	weather := Weather{
		Temperature: resp.Current.Temp,
		Current:     Conditions(resp.Current.Weather[0]),
		High:        resp.Daily[0].Temp.Max,
		Low:         resp.Daily[0].Temp.Min,
		Units:       c.units,
	}
	for _, hour := range resp.Hourly {
		forecast := HourlyForecast{
			At:          time.Unix(hour.Dt, 0),
			Temperature: hour.Temp,
		}
		if len(hour.Weather) > 0 {
			forecast.Icon = hour.Weather[0].Icon
		}
		weather.Hourly = append(weather.Hourly, forecast)
	}

	return weather, nil
}
