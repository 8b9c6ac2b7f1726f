package stats

import "tauleap/internal/model"

type PlotPoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// BuildMeanPlot extracts one species' ensemble mean as a plottable series,
// thinned to every stride-th grid point.
func BuildMeanPlot(summary model.EnsembleSummary, species string, stride int) []PlotPoint {
	if stride <= 0 {
		stride = 1
	}
	for _, s := range summary.Species {
		if s.Name != species {
			continue
		}
		points := make([]PlotPoint, 0, len(s.Mean)/stride+1)
		for k := 0; k < len(s.Mean) && k < len(summary.Times); k += stride {
			points = append(points, PlotPoint{Time: summary.Times[k], Value: s.Mean[k]})
		}
		return points
	}
	return nil
}

// BuildEnvelopePlot returns the mean plus-or-minus one standard deviation
// band for one species.
func BuildEnvelopePlot(summary model.EnsembleSummary, species string, stride int) (upper, lower []PlotPoint) {
	if stride <= 0 {
		stride = 1
	}
	for _, s := range summary.Species {
		if s.Name != species {
			continue
		}
		for k := 0; k < len(s.Mean) && k < len(summary.Times); k += stride {
			upper = append(upper, PlotPoint{Time: summary.Times[k], Value: s.Mean[k] + s.StdDev[k]})
			lower = append(lower, PlotPoint{Time: summary.Times[k], Value: s.Mean[k] - s.StdDev[k]})
		}
		return upper, lower
	}
	return nil, nil
}
