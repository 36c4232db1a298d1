package raster

import "math"

const histogramBuckets = 10

// pixelStats holds the summary statistics of one band's pixel values.
type pixelStats struct {
	mean, min, max, stddev float64
	validPercent           float64
	histMin, histMax       float64
	buckets                []int
}

// bandStats computes statistics and an equal-width histogram over the valid
// pixels of a buffer. Pixels equal to nodata, NaN or infinite are masked out.
func bandStats(data []float64, nodata *float64) pixelStats {
	valid := make([]float64, 0, len(data))
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if nodata != nil && v == *nodata {
			continue
		}
		valid = append(valid, v)
	}

	st := pixelStats{
		buckets: make([]int, histogramBuckets),
	}
	if len(data) > 0 {
		st.validPercent = float64(len(valid)) / float64(len(data)) * 100
	}
	if len(valid) == 0 {
		return st
	}

	st.min, st.max = valid[0], valid[0]
	sum := 0.0
	for _, v := range valid {
		st.min = math.Min(st.min, v)
		st.max = math.Max(st.max, v)
		sum += v
	}
	st.mean = sum / float64(len(valid))

	sqSum := 0.0
	for _, v := range valid {
		d := v - st.mean
		sqSum += d * d
	}
	st.stddev = math.Sqrt(sqSum / float64(len(valid)))

	// Equal-width buckets between min and max. A constant band still gets a
	// non-degenerate bucket range.
	st.histMin, st.histMax = st.min, st.max
	if st.histMin == st.histMax {
		st.histMin -= 0.5
		st.histMax += 0.5
	}
	width := (st.histMax - st.histMin) / histogramBuckets
	for _, v := range valid {
		b := int((v - st.histMin) / width)
		if b >= histogramBuckets {
			b = histogramBuckets - 1
		}
		st.buckets[b]++
	}
	return st
}

func (s pixelStats) statisticsMap() map[string]interface{} {
	return map[string]interface{}{
		"mean":          s.mean,
		"minimum":       s.min,
		"maximum":       s.max,
		"stddev":        s.stddev,
		"valid_percent": s.validPercent,
	}
}

func (s pixelStats) histogramMap() map[string]interface{} {
	return map[string]interface{}{
		// Edge count, one more than the bucket count.
		"count":   histogramBuckets + 1,
		"min":     s.histMin,
		"max":     s.histMax,
		"buckets": s.buckets,
	}
}
