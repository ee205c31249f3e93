package provider

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultPredictionsUrl = "http://www.ctabustracker.com/bustime/api/v3/getpredictions"
	DefaultRoutesUrl      = "http://www.transitchicago.com/api/1.0/routes.aspx"

	// NormalService is the route status reported when no alert is active.
	NormalService = "Normal Service"

	predictionTimeLayout = "20060102 15:04"
)

type Prediction struct {
	Route     string    `yaml:"route"`
	StopId    string    `yaml:"stop_id"`
	Direction string    `yaml:"direction"`
	ArrivalAt time.Time `yaml:"arrival_at"`
	Delayed   bool      `yaml:"delayed"`
}

// Predictions is the answer for one stop. When the upstream has no
// predictions to give (no service, stop closed...) Message carries its reason.
type Predictions struct {
	Predictions []Prediction `yaml:"predictions"`
	Message     string       `yaml:"message,omitempty"`
}

type RouteStatus struct {
	Route  string `yaml:"route"`
	Status string `yaml:"status"`
}

func (rs RouteStatus) IsNormal() bool {
	return strings.EqualFold(strings.TrimSpace(rs.Status), NormalService)
}

type TransitClient struct {
	predictionsUrl string
	routesUrl      string
	apiKey         string
	location       *time.Location
	client         *http.Client
}

func NewTransitClient(predictionsUrl, routesUrl, apiKey string, timeout time.Duration, location *time.Location) *TransitClient {
	if predictionsUrl == "" {
		predictionsUrl = DefaultPredictionsUrl
	}
	if routesUrl == "" {
		routesUrl = DefaultRoutesUrl
	}
	if location == nil {
		location = time.Local
	}
	return &TransitClient{
		predictionsUrl: predictionsUrl,
		routesUrl:      routesUrl,
		apiKey:         apiKey,
		location:       location,
		client:         newHttpClient(timeout),
	}
}

type bustimeResponse struct {
	Response struct {
		Prd []struct {
			Rt    string `json:"rt"`
			Stpid string `json:"stpid"`
			Rtdir string `json:"rtdir"`
			Prdtm string `json:"prdtm"`
			Dly   bool   `json:"dly"`
		} `json:"prd"`
		Error []struct {
			Msg string `json:"msg"`
		} `json:"error"`
	} `json:"bustime-response"`
}

func (c *TransitClient) Predictions(ctx context.Context, route, stopId string) (Predictions, error) {
	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("rt", route)
	query.Set("stpid", stopId)
	query.Set("format", "json")

	body, err := get(ctx, c.client, c.predictionsUrl+"?"+query.Encode())
	if err != nil {
		return Predictions{}, err
	}

	var resp bustimeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Predictions{}, fmt.Errorf("unable to decode predictions: %w", err)
	}

	result := Predictions{}
	for _, prd := range resp.Response.Prd {
		arrivalAt, err := time.ParseInLocation(predictionTimeLayout, prd.Prdtm, c.location)
		if err != nil {
			return Predictions{}, fmt.Errorf("unable to parse prediction time %q: %w", prd.Prdtm, err)
		}
		result.Predictions = append(result.Predictions, Prediction{
			Route:     prd.Rt,
			StopId:    prd.Stpid,
			Direction: prd.Rtdir,
			ArrivalAt: arrivalAt,
			Delayed:   prd.Dly,
		})
	}
	if len(result.Predictions) == 0 && len(resp.Response.Error) > 0 {
		result.Message = resp.Response.Error[0].Msg
	} else if resp.Response.Prd == nil && resp.Response.Error == nil {
		return Predictions{}, fmt.Errorf("predictions answer has neither predictions nor error")
	}

	return result, nil
}

type ctaRoutes struct {
	XMLName   xml.Name `xml:"CTARoutes"`
	RouteInfo *struct {
		Route       string  `xml:"Route"`
		RouteStatus *string `xml:"RouteStatus"`
	} `xml:"RouteInfo"`
}

func (c *TransitClient) RouteStatus(ctx context.Context, route string) (RouteStatus, error) {
	query := url.Values{}
	query.Set("routeid", route)

	body, err := get(ctx, c.client, c.routesUrl+"?"+query.Encode())
	if err != nil {
		return RouteStatus{}, err
	}

	var resp ctaRoutes
	if err := xml.Unmarshal(body, &resp); err != nil {
		return RouteStatus{}, fmt.Errorf("unable to decode route status: %w", err)
	}
	if resp.RouteInfo == nil {
		return RouteStatus{}, fmt.Errorf("no route info for route %s", route)
	}
	if resp.RouteInfo.RouteStatus == nil {
		return RouteStatus{}, fmt.Errorf("no route status for route %s", route)
	}

	return RouteStatus{Route: route, Status: strings.TrimSpace(*resp.RouteInfo.RouteStatus)}, nil
}
