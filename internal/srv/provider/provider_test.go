package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPredictions(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"bustime-response":{"prd":[
			{"rt":"X9","stpid":"6024","rtdir":"Southbound","prdtm":"20240603 07:12","dly":false},
			{"rt":"X9","stpid":"6024","rtdir":"Southbound","prdtm":"20240603 07:25","dly":true}
		]}}`)
	}))
	defer server.Close()

	client := NewTransitClient(server.URL, server.URL, "secret", time.Second, time.UTC)
	result, err := client.Predictions(context.Background(), "X9", "6024")
	if err != nil {
		t.Fatalf("Predictions: %v", err)
	}
	if len(result.Predictions) != 2 {
		t.Fatalf("got %d predictions, want 2", len(result.Predictions))
	}
	want := time.Date(2024, 6, 3, 7, 12, 0, 0, time.UTC)
	if !result.Predictions[0].ArrivalAt.Equal(want) {
		t.Errorf("ArrivalAt = %v, want %v", result.Predictions[0].ArrivalAt, want)
	}
	if !result.Predictions[1].Delayed {
		t.Errorf("second prediction should be delayed")
	}
	if gotQuery == "" {
		t.Errorf("no query sent")
	}
	for _, part := range []string{"key=secret", "rt=X9", "stpid=6024", "format=json"} {
		if !contains(gotQuery, part) {
			t.Errorf("query %q misses %q", gotQuery, part)
		}
	}
}

func TestPredictionsApiMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bustime-response":{"error":[{"msg":"No service scheduled"}]}}`)
	}))
	defer server.Close()

	client := NewTransitClient(server.URL, server.URL, "", time.Second, time.UTC)
	result, err := client.Predictions(context.Background(), "9", "14619")
	if err != nil {
		t.Fatalf("Predictions: %v", err)
	}
	if result.Message != "No service scheduled" || len(result.Predictions) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPredictionsFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "oops"},
		{"not json", http.StatusOK, "<html>"},
		{"empty answer", http.StatusOK, `{"bustime-response":{}}`},
		{"bad time", http.StatusOK, `{"bustime-response":{"prd":[{"prdtm":"soon"}]}}`},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, tt.body)
		}))
		client := NewTransitClient(server.URL, server.URL, "", time.Second, time.UTC)
		_, err := client.Predictions(context.Background(), "72", "903")
		server.Close()
		if err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestPredictionsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewTransitClient(server.URL, server.URL, "", time.Second, time.UTC)
	_, err := client.Predictions(context.Background(), "72", "903")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want *StatusError with 500", err)
	}
}

func TestRouteStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantNormal bool
		wantErr    bool
	}{
		{
			name:       "normal",
			body:       `<CTARoutes><RouteInfo><Route>X9</Route><RouteStatus>Normal Service</RouteStatus></RouteInfo></CTARoutes>`,
			wantStatus: NormalService,
			wantNormal: true,
		},
		{
			name:       "detour",
			body:       `<CTARoutes><RouteInfo><Route>72</Route><RouteStatus> Bus Reroute </RouteStatus></RouteInfo></CTARoutes>`,
			wantStatus: "Bus Reroute",
		},
		{
			name:    "missing route info",
			body:    `<CTARoutes><ErrorCode>0</ErrorCode></CTARoutes>`,
			wantErr: true,
		},
		{
			name:    "missing status",
			body:    `<CTARoutes><RouteInfo><Route>9</Route></RouteInfo></CTARoutes>`,
			wantErr: true,
		},
		{
			name:    "not xml",
			body:    `{}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("routeid") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fmt.Fprint(w, tt.body)
		}))
		client := NewTransitClient(server.URL, server.URL, "", time.Second, time.UTC)
		status, err := client.RouteStatus(context.Background(), "X9")
		server.Close()

		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if status.Status != tt.wantStatus || status.IsNormal() != tt.wantNormal {
			t.Errorf("%s: got %+v (normal=%v)", tt.name, status, status.IsNormal())
		}
	}
}

func TestWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("exclude") != "minutely" || r.URL.Query().Get("units") != "imperial" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{
			"current":{"temp":71.6,"weather":[{"main":"Clouds","description":"broken clouds","icon":"04d"}]},
			"hourly":[{"dt":1717416000,"temp":70.1,"weather":[{"icon":"04d"}]},{"dt":1717419600,"temp":72.3,"weather":[]}],
			"daily":[{"temp":{"min":58.2,"max":77.9}}]
		}`)
	}))
	defer server.Close()

	client := NewWeatherClient(server.URL, "key", 41.9, -87.6, "", time.Second)
	weather, err := client.Weather(context.Background())
	if err != nil {
		t.Fatalf("Weather: %v", err)
	}
	if weather.Current.Main != "Clouds" || weather.Current.Icon != "04d" {
		t.Errorf("current conditions = %+v", weather.Current)
	}
	if weather.High != 77.9 || weather.Low != 58.2 {
		t.Errorf("high/low = %v/%v", weather.High, weather.Low)
	}
	if len(weather.Hourly) != 2 || weather.Hourly[1].Icon != "" {
		t.Errorf("hourly = %+v", weather.Hourly)
	}
	if weather.TemperatureUnit() != "F" {
		t.Errorf("TemperatureUnit() = %q, want F", weather.TemperatureUnit())
	}
}

func TestWeatherIncomplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"current":{"temp":50,"weather":[]},"daily":[]}`)
	}))
	defer server.Close()

	client := NewWeatherClient(server.URL, "key", 0, 0, "metric", time.Second)
	if _, err := client.Weather(context.Background()); err == nil {
		t.Fatalf("expected an error for an incomplete answer")
	}
}

func TestRequestCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewWeatherClient(server.URL, "key", 0, 0, "", 5*time.Second)
	if _, err := client.Weather(ctx); err == nil {
		t.Fatalf("expected an error from a cancelled context")
	}
}

func contains(s, part string) bool {
	for i := 0; i+len(part) <= len(s); i++ {
		if s[i:i+len(part)] == part {
			return true
		}
	}
	return false
}
