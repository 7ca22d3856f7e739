// Package profile builds an intraday volume-at-price market profile from
// 1-minute candles and derives its point of control and 70% value area.
package profile

import (
	"math"
	"sort"

	"gammawatch/internal/upstox"
)

// ValueAreaShare is the fraction of total volume the value area must cover.
const ValueAreaShare = 0.70

// Profile is an immutable snapshot of one session's volume distribution.
// High/Low are NaN when no candle carried the respective extreme.
type Profile struct {
	POC         float64
	VAH         float64
	VAL         float64
	High        float64
	Low         float64
	TotalVolume float64
}

type bucket struct {
	price  float64
	volume float64
}

// Build aggregates candle closes into price buckets of the given width and
// derives POC/VAH/VAL. It returns nil when the input is degenerate: no
// candles, no usable closes, or non-positive total volume. Ties on bucket
// volume break toward the lower price, so the result is independent of
// candle order.
func Build(candles []upstox.Candle, bucketSize float64) *Profile {
	if len(candles) == 0 || bucketSize <= 0 {
		return nil
	}

	volAt := make(map[float64]float64)
	total := 0.0
	high := math.Inf(-1)
	low := math.Inf(1)

	for _, c := range candles {
		if math.IsNaN(c.Close) {
			continue
		}
		b := math.Round(c.Close/bucketSize) * bucketSize
		volAt[b] += c.Volume
		total += c.Volume

		if !math.IsNaN(c.High) && c.High > high {
			high = c.High
		}
		if !math.IsNaN(c.Low) && c.Low < low {
			low = c.Low
		}
	}
	if len(volAt) == 0 || total <= 0 {
		return nil
	}

	buckets := make([]bucket, 0, len(volAt))
	for p, v := range volAt {
		buckets = append(buckets, bucket{price: p, volume: v})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].volume != buckets[j].volume {
			return buckets[i].volume > buckets[j].volume
		}
		return buckets[i].price < buckets[j].price
	})

	// POC and the greedy value area come from the same ordering, so the POC
	// bucket is always inside the accepted set.
	poc := buckets[0].price
	target := total * ValueAreaShare
	cum := 0.0
	vah := math.Inf(-1)
	val := math.Inf(1)
	for _, b := range buckets {
		cum += b.volume
		if b.price > vah {
			vah = b.price
		}
		if b.price < val {
			val = b.price
		}
		if cum >= target {
			break
		}
	}

	p := &Profile{
		POC:         poc,
		VAH:         vah,
		VAL:         val,
		High:        math.NaN(),
		Low:         math.NaN(),
		TotalVolume: total,
	}
	if !math.IsInf(high, -1) {
		p.High = high
	}
	if !math.IsInf(low, 1) {
		p.Low = low
	}
	return p
}
