package render

import (
	"math"
	"strconv"
	"time"

	"github.com/jypelle/tabelo/internal/srv/provider"
)

const (
	DefaultMaxArrivals = 3

	Due        = "Due"
	NoArrivals = "No arrivals"
)

// ArrivalLabels turns predictions into the labels of the arrival segments:
// whole minutes rounded down, "Due" under one minute. Delayed predictions are
// skipped and at most maxArrivals labels are returned.
func ArrivalLabels(predictions []provider.Prediction, now time.Time, maxArrivals int) []string {
	if maxArrivals <= 0 {
		maxArrivals = DefaultMaxArrivals
	}

	var labels []string
	for _, prediction := range predictions {
		if len(labels) == maxArrivals {
			break
		}
		if prediction.Delayed {
			continue
		}
		minutes := int(math.Floor(prediction.ArrivalAt.Sub(now).Minutes()))
		if minutes < 1 {
			labels = append(labels, Due)
		} else {
			labels = append(labels, strconv.Itoa(minutes))
		}
	}
	return labels
}
