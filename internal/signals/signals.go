// Package signals evaluates quote ticks against the latest market profile
// (index instruments) and rolling tick statistics (option instruments).
package signals

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gammawatch/internal/profile"
)

type Kind string

const (
	KindTrappedSellersBuy Kind = "tsb"
	KindTrappedBuyersSell Kind = "tbs"
	KindInitiativeBuy     Kind = "initiative_buy"
	KindInitiativeSell    Kind = "initiative_sell"
	KindHFTFootprint      Kind = "hft_footprint"
	KindGammaBlast        Kind = "gamma_blast"
)

func (k Kind) Title() string {
	switch k {
	case KindTrappedSellersBuy:
		return "Trapped Sellers Buy"
	case KindTrappedBuyersSell:
		return "Trapped Buyers Sell"
	case KindInitiativeBuy:
		return "Initiative Buying"
	case KindInitiativeSell:
		return "Initiative Selling"
	case KindHFTFootprint:
		return "HFT Footprint"
	case KindGammaBlast:
		return "Gamma Blast"
	}
	return string(k)
}

// Alert is one signal firing. Cooldown suppression is the sink's concern;
// the engine emits every qualifying signal.
type Alert struct {
	Kind       Kind
	Instrument string
	Symbol     string
	Price      float64
	Time       time.Time
	Info       string
}

// Config holds the engine tunables. Percentages are expressed the way the
// operator configures them: 0.20 means 0.20%.
type Config struct {
	MinTickInterval time.Duration
	VolumeMult      float64
	SmallMovePct    float64
	GammaMovePct    float64
	LookbackTicks   int
	RecentHFTWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinTickInterval: 350 * time.Millisecond,
		VolumeMult:      3.0,
		SmallMovePct:    0.20,
		GammaMovePct:    1.00,
		LookbackTicks:   25,
		RecentHFTWindow: 30 * time.Second,
	}
}

type gammaPhase int

const (
	phaseNormal gammaPhase = iota
	phaseArmed
)

type indexState struct {
	prevPrice float64
	seen      bool
}

type optionState struct {
	symbol string
	ticks  *tickRing

	phase     gammaPhase
	armedAt   time.Time
	basePrice float64
}

// Engine is per-process, keyed by instrument internally.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	profiles map[string]*profile.Profile
	indices  map[string]*indexState
	options  map[string]*optionState
}

func NewEngine(cfg Config) *Engine {
	if cfg.LookbackTicks < 2 {
		cfg.LookbackTicks = DefaultConfig().LookbackTicks
	}
	if cfg.MinTickInterval <= 0 {
		cfg.MinTickInterval = DefaultConfig().MinTickInterval
	}
	if cfg.RecentHFTWindow <= 0 {
		cfg.RecentHFTWindow = DefaultConfig().RecentHFTWindow
	}
	return &Engine{
		cfg:      cfg,
		profiles: make(map[string]*profile.Profile),
		indices:  make(map[string]*indexState),
		options:  make(map[string]*optionState),
	}
}

// SetProfile swaps the market profile snapshot consulted for one index
// instrument. A nil profile disables the index rules until the next rebuild.
func (e *Engine) SetProfile(instrumentKey string, p *profile.Profile) {
	e.mu.Lock()
	e.profiles[instrumentKey] = p
	e.mu.Unlock()
}

// Profile returns the snapshot currently held for an index instrument.
func (e *Engine) Profile(instrumentKey string) *profile.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profiles[instrumentKey]
}

// OnIndexTick evaluates the value-area rules for one index quote.
func (e *Engine) OnIndexTick(instrumentKey string, price float64, now time.Time) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.indices[instrumentKey]
	if st == nil {
		st = &indexState{}
		e.indices[instrumentKey] = st
	}
	prev, seen := st.prevPrice, st.seen
	st.prevPrice = price
	st.seen = true

	mp := e.profiles[instrumentKey]
	if mp == nil || !seen {
		return nil
	}

	var alerts []Alert
	emit := func(kind Kind, info string) {
		alerts = append(alerts, Alert{
			Kind:       kind,
			Instrument: instrumentKey,
			Price:      price,
			Time:       now,
			Info:       info,
		})
	}

	switch {
	case prev < mp.VAL && price >= mp.VAL:
		emit(KindTrappedSellersBuy,
			fmt.Sprintf("re-entered value from below VAL %.1f (%.1f -> %.1f)", mp.VAL, prev, price))
	case prev > mp.VAH && price <= mp.VAH:
		emit(KindTrappedBuyersSell,
			fmt.Sprintf("re-entered value from above VAH %.1f (%.1f -> %.1f)", mp.VAH, prev, price))
	case prev >= mp.VAL && prev <= mp.VAH && price > mp.VAH:
		emit(KindInitiativeBuy,
			fmt.Sprintf("broke above VAH %.1f from inside value", mp.VAH))
	case prev >= mp.VAL && prev <= mp.VAH && price < mp.VAL:
		emit(KindInitiativeSell,
			fmt.Sprintf("broke below VAL %.1f from inside value", mp.VAL))
	}
	return alerts
}

// OnOptionTick records one option quote observation and evaluates the HFT
// footprint and gamma-blast rules.
func (e *Engine) OnOptionTick(instrumentKey, symbol string, price, volume float64, now time.Time) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.options[instrumentKey]
	if st == nil {
		st = &optionState{symbol: symbol, ticks: newTickRing(e.cfg.LookbackTicks)}
		e.options[instrumentKey] = st
	}
	if symbol != "" {
		st.symbol = symbol
	}

	prev, havePrev := st.ticks.Newest()
	baseline := st.ticks.MeanVolumeDelta()
	st.ticks.Push(tick{at: now, price: price, volume: volume})

	var alerts []Alert
	emit := func(kind Kind, info string) {
		alerts = append(alerts, Alert{
			Kind:       kind,
			Instrument: instrumentKey,
			Symbol:     st.symbol,
			Price:      price,
			Time:       now,
			Info:       info,
		})
	}

	// Armed window expires without a qualifying move.
	if st.phase == phaseArmed && now.Sub(st.armedAt) > e.cfg.RecentHFTWindow {
		st.phase = phaseNormal
	}

	if havePrev && prev.price > 0 {
		interval := now.Sub(prev.at)
		volDelta := volume - prev.volume
		movePct := math.Abs(price-prev.price) / prev.price * 100

		if interval > 0 && interval < e.cfg.MinTickInterval &&
			baseline > 0 && volDelta > e.cfg.VolumeMult*baseline &&
			movePct < e.cfg.SmallMovePct {
			emit(KindHFTFootprint, fmt.Sprintf(
				"burst: %.0fms interval, vol +%.0f (%.1fx baseline), move %.3f%%",
				float64(interval.Milliseconds()), volDelta, volDelta/baseline, movePct))

			// Arm from the oldest retained tick so the gamma move is measured
			// against the pre-burst base, not the burst itself.
			if oldest, ok := st.ticks.Oldest(); ok && oldest.price > 0 {
				st.phase = phaseArmed
				st.armedAt = now
				st.basePrice = oldest.price
			}
		}
	}

	if st.phase == phaseArmed && st.basePrice > 0 {
		movePct := math.Abs(price-st.basePrice) / st.basePrice * 100
		if movePct > e.cfg.GammaMovePct {
			emit(KindGammaBlast, fmt.Sprintf(
				"%.2f%% move from base %.2f within %s of footprint",
				movePct, st.basePrice, e.cfg.RecentHFTWindow))
			st.phase = phaseNormal
		}
	}
	return alerts
}
