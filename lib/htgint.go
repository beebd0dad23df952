package lib

import "math"
import "sort"
import "strconv"

// HistogramInt64 counts int64 samples into fixed width buckets,
// typically used for sizes and depths.
type HistogramInt64 struct {
	n       int64
	minval  int64
	maxval  int64
	sum     int64
	sumsq   float64
	buckets []int64 // [0] below from, [len-1] at or above till

	from  int64
	till  int64
	width int64
}

// NewHistogramInt64 return a histogram with buckets of `width`
// between [from, till), samples outside the range are counted in
// the first and last buckets.
func NewHistogramInt64(from, till, width int64) *HistogramInt64 {
	if width <= 0 {
		width = 1
	}
	from, till = (from/width)*width, (till/width)*width
	if till < from {
		till = from
	}
	h := &HistogramInt64{from: from, till: till, width: width}
	h.buckets = make([]int64, ((till-from)/width)+2)
	return h
}

// Add a sample.
func (h *HistogramInt64) Add(sample int64) {
	if h.n == 0 || sample < h.minval {
		h.minval = sample
	}
	if h.n == 0 || sample > h.maxval {
		h.maxval = sample
	}
	h.n++
	h.sum += sample
	h.sumsq += float64(sample) * float64(sample)

	switch {
	case sample < h.from:
		h.buckets[0]++
	case sample >= h.till:
		h.buckets[len(h.buckets)-1]++
	default:
		h.buckets[((sample-h.from)/h.width)+1]++
	}
}

// Min sample value.
func (h *HistogramInt64) Min() int64 {
	return h.minval
}

// Max sample value.
func (h *HistogramInt64) Max() int64 {
	return h.maxval
}

// Samples counted so far.
func (h *HistogramInt64) Samples() int64 {
	return h.n
}

// Sum of all samples.
func (h *HistogramInt64) Sum() int64 {
	return h.sum
}

// Mean of all samples.
func (h *HistogramInt64) Mean() float64 {
	if h.n == 0 {
		return 0
	}
	return float64(h.sum) / float64(h.n)
}

// Variance of samples from their mean.
func (h *HistogramInt64) Variance() float64 {
	if h.n == 0 {
		return 0
	}
	mean := h.Mean()
	return (h.sumsq / float64(h.n)) - (mean * mean)
}

// SD standard deviation of samples.
func (h *HistogramInt64) SD() float64 {
	if variance := h.Variance(); variance > 0 {
		return math.Sqrt(variance)
	}
	return 0
}

// Stats return cumulative count of samples, keyed by bucket's upper
// bound. Samples at or above the histogram range are keyed as "+".
// Trailing empty buckets are skipped.
func (h *HistogramInt64) Stats() map[string]int64 {
	last := len(h.buckets) - 1
	for last >= 0 && h.buckets[last] == 0 {
		last--
	}
	m, cumm := make(map[string]int64), int64(0)
	for i := 0; i <= last; i++ {
		cumm += h.buckets[i]
		if i == len(h.buckets)-1 {
			m["+"] = cumm
		} else {
			m[strconv.Itoa(int(h.from+int64(i)*h.width))] = cumm
		}
	}
	return m
}

// Fullstats return Stats() along with min, max, mean and deviation.
func (h *HistogramInt64) Fullstats() map[string]interface{} {
	hmap := make(map[string]interface{})
	for k, v := range h.Stats() {
		hmap[k] = v
	}
	return map[string]interface{}{
		"samples":     h.n,
		"min":         h.minval,
		"max":         h.maxval,
		"mean":        h.Mean(),
		"variance":    h.Variance(),
		"stddeviance": h.SD(),
		"histogram":   hmap,
	}
}

// Keys return histogram keys from Stats() in ascending order.
func (h *HistogramInt64) Keys() []string {
	stats := h.Stats()
	bounds, plus := []int{}, false
	for k := range stats {
		if k == "+" {
			plus = true
			continue
		}
		n, _ := strconv.Atoi(k)
		bounds = append(bounds, n)
	}
	sort.Ints(bounds)
	keys := make([]string, 0, len(stats))
	for _, n := range bounds {
		keys = append(keys, strconv.Itoa(n))
	}
	if plus {
		keys = append(keys, "+")
	}
	return keys
}

// Logstring return Fullstats as loggable json string.
func (h *HistogramInt64) Logstring() string {
	return Prettystats(h.Fullstats(), false)
}
