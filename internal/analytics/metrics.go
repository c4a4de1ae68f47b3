// Package analytics derives daily trading-style metrics and cross-supplier
// price comparisons from stored price observations.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/lchartrand/shelfprice/internal/domain"
)

type seriesKey struct {
	supplier  string
	productID string
}

// dayAggregate is one calendar day's OHLC bucket within a series.
type dayAggregate struct {
	date  time.Time
	open  float64
	close float64
	high  float64
	low   float64
}

// ComputeDailyMetrics aggregates observations into one DailyMetric per
// (date, supplier, product). windowDays bounds the trailing rolling window
// in calendar days; near the start of a series the window narrows rather
// than padding. Undefined values (first-day return, volatility with fewer
// than two returns) are reported as 0, never omitted. Output is ordered by
// supplier, product, date.
func ComputeDailyMetrics(observations []domain.Observation, windowDays int) []domain.DailyMetric {
	if len(observations) == 0 {
		return nil
	}
	if windowDays < 1 {
		windowDays = 1
	}

	series := groupSeries(observations)

	keys := make([]seriesKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].supplier != keys[j].supplier {
			return keys[i].supplier < keys[j].supplier
		}
		return keys[i].productID < keys[j].productID
	})

	var metrics []domain.DailyMetric
	for _, k := range keys {
		metrics = append(metrics, seriesMetrics(k, series[k], windowDays)...)
	}
	return metrics
}

// groupSeries buckets observations per (supplier, product) and UTC calendar
// day, computing the day's OHLC as it goes. Observations are processed in
// timestamp order so open/close land on the chronologically first/last
// quote of the day.
func groupSeries(observations []domain.Observation) map[seriesKey][]dayAggregate {
	ordered := make([]domain.Observation, len(observations))
	copy(ordered, observations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	days := make(map[seriesKey]map[time.Time]*dayAggregate)
	for _, obs := range ordered {
		k := seriesKey{supplier: obs.Supplier, productID: obs.ProductID}
		date := obs.Timestamp.UTC().Truncate(24 * time.Hour)

		if days[k] == nil {
			days[k] = make(map[time.Time]*dayAggregate)
		}
		agg, ok := days[k][date]
		if !ok {
			days[k][date] = &dayAggregate{
				date: date, open: obs.Price, close: obs.Price,
				high: obs.Price, low: obs.Price,
			}
			continue
		}
		agg.close = obs.Price
		agg.high = math.Max(agg.high, obs.Price)
		agg.low = math.Min(agg.low, obs.Price)
	}

	series := make(map[seriesKey][]dayAggregate, len(days))
	for k, byDate := range days {
		aggs := make([]dayAggregate, 0, len(byDate))
		for _, agg := range byDate {
			aggs = append(aggs, *agg)
		}
		sort.Slice(aggs, func(i, j int) bool { return aggs[i].date.Before(aggs[j].date) })
		series[k] = aggs
	}
	return series
}

// seriesMetrics walks one series in date order, deriving returns and the
// trailing rolling statistics.
func seriesMetrics(k seriesKey, days []dayAggregate, windowDays int) []domain.DailyMetric {
	metrics := make([]domain.DailyMetric, 0, len(days))

	// returns[i] holds day i's return; hasReturn marks whether it is
	// defined (a prior close exists and is non-zero).
	returns := make([]float64, len(days))
	hasReturn := make([]bool, len(days))
	for i := 1; i < len(days); i++ {
		prev := days[i-1].close
		if prev != 0 {
			returns[i] = (days[i].close - prev) / prev
			hasReturn[i] = true
		}
	}

	for i, day := range days {
		windowStart := day.date.AddDate(0, 0, -(windowDays - 1))

		var (
			closeSum   float64
			closeCount int
			winReturns []float64
		)
		for j := i; j >= 0; j-- {
			if days[j].date.Before(windowStart) {
				break
			}
			closeSum += days[j].close
			closeCount++
			if hasReturn[j] {
				winReturns = append(winReturns, returns[j])
			}
		}

		m := domain.DailyMetric{
			Date:       day.date,
			Supplier:   k.supplier,
			ProductID:  k.productID,
			OpenPrice:  day.open,
			ClosePrice: day.close,
			HighPrice:  day.high,
			LowPrice:   day.low,
		}
		if hasReturn[i] {
			m.DailyReturn = returns[i]
		}
		if closeCount > 0 {
			m.RollingAvg7d = closeSum / float64(closeCount)
		}
		if len(winReturns) >= 2 {
			m.Volatility7d = populationStdDev(winReturns)
		}
		metrics = append(metrics, m)
	}
	return metrics
}

func populationStdDev(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
