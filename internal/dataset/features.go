package dataset

import (
	"math"

	"github.com/markcheno/go-talib"
)

// FeatureNames lists the columns produced by BuildFeatures, in order.
var FeatureNames = []string{"Open", "High", "Low", "Close", "Volume", "Price_Change", "SMA_10", "SMA_30"}

const (
	shortSMAPeriod = 10
	longSMAPeriod  = 30
)

// BuildFeatures derives one feature row per bar.
// Price_Change is the percent move from the previous close. SMA columns are 0 until
// enough history has accumulated.
func BuildFeatures(bars []Bar) [][]float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	short := movingAverage(closes, shortSMAPeriod)
	long := movingAverage(closes, longSMAPeriod)

	rows := make([][]float64, len(bars))
	for i, b := range bars {
		change := 0.0
		if i > 0 && bars[i-1].Close != 0 {
			change = (b.Close - bars[i-1].Close) / bars[i-1].Close * 100
		}
		rows[i] = []float64{b.Open, b.High, b.Low, b.Close, b.Volume, change, short[i], long[i]}
	}
	return rows
}

func movingAverage(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period {
		return out
	}

	sma := talib.Sma(closes, period)
	for i := range out {
		if i < period-1 || i >= len(sma) || math.IsNaN(sma[i]) {
			continue
		}
		out[i] = sma[i]
	}
	return out
}
