package signals

import "time"

type tick struct {
	at     time.Time
	price  float64
	volume float64
}

// tickRing is a fixed-capacity FIFO of quote observations. Once full, pushing
// evicts the oldest tick.
type tickRing struct {
	buf   []tick
	start int
	count int
}

func newTickRing(capacity int) *tickRing {
	if capacity < 2 {
		capacity = 2
	}
	return &tickRing{buf: make([]tick, capacity)}
}

func (r *tickRing) Len() int { return r.count }

func (r *tickRing) Push(t tick) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = t
		r.count++
		return
	}
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
}

func (r *tickRing) at(i int) tick {
	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *tickRing) Oldest() (tick, bool) {
	if r.count == 0 {
		return tick{}, false
	}
	return r.at(0), true
}

func (r *tickRing) Newest() (tick, bool) {
	if r.count == 0 {
		return tick{}, false
	}
	return r.at(r.count - 1), true
}

// MeanVolumeDelta is the average cumulative-volume increment between
// consecutive retained ticks. Negative increments (session resets) count as
// zero so a single rollover cannot poison the baseline.
func (r *tickRing) MeanVolumeDelta() float64 {
	if r.count < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < r.count; i++ {
		d := r.at(i).volume - r.at(i-1).volume
		if d > 0 {
			sum += d
		}
	}
	return sum / float64(r.count-1)
}
