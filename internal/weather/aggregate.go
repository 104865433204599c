package weather

import "time"

// AggregateReadings merges provider readings into one snapshot. Numeric
// fields are averaged over the providers that answered. The condition is the
// most reported known one, ties going to the condition reported first; it is
// unknown only when no provider could classify the weather.
func AggregateReadings(loc Location, readings []ProviderReading) WeatherSnapshot {
	snap := WeatherSnapshot{Location: loc, Condition: ConditionUnknown}
	if len(readings) == 0 {
		snap.Timestamp = time.Now().UTC()
		return snap
	}

	snap.Temperature = mean(readings, func(r ProviderReading) float64 { return r.TemperatureC })
	snap.Humidity = mean(readings, func(r ProviderReading) float64 { return r.HumidityPct })
	snap.WindSpeed = mean(readings, func(r ProviderReading) float64 { return r.WindSpeedMS })
	snap.Pressure = mean(readings, func(r ProviderReading) float64 { return r.PressureHpa })
	snap.PrecipMM = mean(readings, func(r ProviderReading) float64 { return r.PrecipMm })
	snap.Condition = majorityCondition(readings)

	snap.Providers = make([]ProviderContribution, 0, len(readings))
	for _, r := range readings {
		snap.Providers = append(snap.Providers, ProviderContribution{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp,
		})
		// Snapshot time is the freshest reading.
		if r.Timestamp.After(snap.Timestamp) {
			snap.Timestamp = r.Timestamp
		}
		if snap.Summary == "" {
			snap.Summary = r.Summary
		}
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	return snap
}

func mean(readings []ProviderReading, field func(ProviderReading) float64) float64 {
	var sum float64
	for _, r := range readings {
		sum += field(r)
	}
	return sum / float64(len(readings))
}

func majorityCondition(readings []ProviderReading) Condition {
	votes := make(map[Condition]int, len(readings))
	for _, r := range readings {
		if r.Condition != ConditionUnknown && r.Condition != "" {
			votes[r.Condition]++
		}
	}

	best, bestVotes := ConditionUnknown, 0
	for _, r := range readings {
		// Strictly greater keeps the earliest reported condition on a tie.
		if v := votes[r.Condition]; v > bestVotes {
			best, bestVotes = r.Condition, v
		}
	}
	return best
}
