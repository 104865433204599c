package agronomy

// Harvest is a recorded yield for one plot.
type Harvest struct {
	Crop        string
	ActualYield float64 // tons per acre
	PlotSize    float64 // acres
}

// YieldSummary aggregates harvests across plots.
type YieldSummary struct {
	AverageYield       float64 `json:"averageYield"` // tons per acre, weighted by plot size
	TotalYield         float64 `json:"totalYield"`   // tons
	BestPerformingCrop string  `json:"bestPerformingCrop,omitempty"`
}

// TotalYield converts a per-acre yield into tons for a plot of the given size.
func TotalYield(yieldPerAcre, acres float64) float64 {
	return round2(yieldPerAcre * acres)
}

// AnalyzeYields summarises harvests. Entries without a crop or a positive
// yield are ignored. The best crop is the one with the highest mean per-acre
// yield; ties go to the crop seen first.
func AnalyzeYields(harvests []Harvest) YieldSummary {
	var (
		total     float64
		totalArea float64
		order     []string
		sums      = make(map[string]float64)
		counts    = make(map[string]int)
	)

	for _, h := range harvests {
		if h.Crop == "" || h.ActualYield <= 0 {
			continue
		}
		total += TotalYield(h.ActualYield, h.PlotSize)
		totalArea += h.PlotSize

		if _, seen := counts[h.Crop]; !seen {
			order = append(order, h.Crop)
		}
		sums[h.Crop] += h.ActualYield
		counts[h.Crop]++
	}

	if len(order) == 0 {
		return YieldSummary{}
	}

	var (
		best    string
		bestAvg float64
	)
	for _, crop := range order {
		avg := sums[crop] / float64(counts[crop])
		if avg > bestAvg {
			best, bestAvg = crop, avg
		}
	}

	var average float64
	if totalArea > 0 {
		average = total / totalArea
	}

	return YieldSummary{
		AverageYield:       round2(average),
		TotalYield:         round2(total),
		BestPerformingCrop: best,
	}
}
