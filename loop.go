package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"gammawatch/internal/chain"
	"gammawatch/internal/config"
	"gammawatch/internal/notify"
	"gammawatch/internal/profile"
	"gammawatch/internal/signals"
	"gammawatch/internal/upstox"
)

const candleInterval = "1minute"

type familyState struct {
	cfg         config.Family
	lastRefresh time.Time
	lastPrice   float64
	options     []chain.Selected
}

// poller drives the whole bot: one loop fetches quotes, feeds the signal
// engine and time-gates the market-profile/option-band rebuilds. All shared
// state is touched only from this loop (fetches fan out, results join before
// evaluation).
type poller struct {
	cfg      *config.Config
	client   *upstox.Client
	engine   *signals.Engine
	sink     *notify.Sink
	log      *logrus.Logger
	families []*familyState

	mu sync.RWMutex // guards the snapshot read by /api/status
}

func newPoller(cfg *config.Config, families []config.Family, client *upstox.Client, engine *signals.Engine, sink *notify.Sink, log *logrus.Logger) *poller {
	p := &poller{cfg: cfg, client: client, engine: engine, sink: sink, log: log}
	for _, f := range families {
		p.families = append(p.families, &familyState{cfg: f})
	}
	return p
}

func (p *poller) run(ctx context.Context) {
	t := time.NewTicker(p.cfg.PollInterval)
	defer t.Stop()
	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// cycle is one pass: quotes, evaluation in fixed order, then any due
// profile/option-band refresh. Every failure degrades to "no data this tick".
func (p *poller) cycle(ctx context.Context) {
	keys := p.trackedKeys()
	quotes, err := p.client.Quotes(ctx, keys)
	if err != nil {
		p.log.WithError(err).Warn("quote fetch failed")
		quotes = map[string]upstox.Quote{}
	}

	now := time.Now()

	// Indices in watchlist order.
	for _, f := range p.families {
		q, ok := quotes[f.cfg.InstrumentKey]
		if !ok {
			continue
		}
		p.mu.Lock()
		f.lastPrice = q.LastPrice
		p.mu.Unlock()
		for _, a := range p.engine.OnIndexTick(f.cfg.InstrumentKey, q.LastPrice, now) {
			p.sink.Dispatch(a)
		}
	}

	// Options in sorted key order so evaluation is deterministic.
	symByKey := make(map[string]string)
	var optKeys []string
	for _, f := range p.families {
		for _, sel := range f.options {
			if _, dup := symByKey[sel.InstrumentKey]; !dup {
				symByKey[sel.InstrumentKey] = sel.TradingSymbol
				optKeys = append(optKeys, sel.InstrumentKey)
			}
		}
	}
	sort.Strings(optKeys)
	for _, key := range optKeys {
		q, ok := quotes[key]
		if !ok {
			continue
		}
		for _, a := range p.engine.OnOptionTick(key, symByKey[key], q.LastPrice, q.Volume, now) {
			p.sink.Dispatch(a)
		}
	}

	p.refreshDue(ctx, now)
}

// refreshDue rebuilds profiles and option bands for families whose snapshot
// has aged out. Fetches run in parallel and are joined before returning, so
// the next evaluation sees a consistent set.
func (p *poller) refreshDue(ctx context.Context, now time.Time) {
	var due []*familyState
	for _, f := range p.families {
		if now.Sub(f.lastRefresh) >= p.cfg.ProfileRefresh {
			due = append(due, f)
		}
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range due {
		f := f
		g.Go(func() error {
			return p.refreshFamily(gctx, f, now)
		})
	}
	if err := g.Wait(); err != nil {
		p.log.WithError(err).Warn("refresh cycle incomplete")
	}
}

func (p *poller) refreshFamily(ctx context.Context, f *familyState, now time.Time) error {
	log := p.log.WithField("family", f.cfg.Name)

	candles, err := p.client.IntradayCandles(ctx, f.cfg.InstrumentKey, candleInterval)
	if err != nil {
		return err
	}
	mp := profile.Build(candles, f.cfg.BucketSize)
	p.engine.SetProfile(f.cfg.InstrumentKey, mp)
	if mp == nil {
		log.Info("no market profile (degenerate candle batch)")
	} else {
		log.WithFields(logrus.Fields{
			"poc": mp.POC, "vah": mp.VAH, "val": mp.VAL,
		}).Info("market profile rebuilt")
		p.sink.Snapshot(f.cfg.Name, mp)
	}

	p.mu.RLock()
	lastPrice := f.lastPrice
	p.mu.RUnlock()
	if lastPrice > 0 {
		contracts, err := p.client.OptionContracts(ctx, f.cfg.InstrumentKey, f.cfg.Expiry)
		if err != nil {
			return err
		}
		atm := chain.RoundStrike(lastPrice, f.cfg.StrikeStep)
		band := chain.SelectATMBand(contracts, atm, p.cfg.StrikesPerSide)
		p.mu.Lock()
		f.options = band
		p.mu.Unlock()
		log.WithFields(logrus.Fields{
			"atm": atm, "contracts": len(band),
		}).Info("option band refreshed")
	}

	p.mu.Lock()
	f.lastRefresh = now
	p.mu.Unlock()
	return nil
}

func (p *poller) trackedKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, f := range p.families {
		if _, dup := seen[f.cfg.InstrumentKey]; !dup {
			seen[f.cfg.InstrumentKey] = struct{}{}
			keys = append(keys, f.cfg.InstrumentKey)
		}
	}
	for _, f := range p.families {
		for _, sel := range f.options {
			if _, dup := seen[sel.InstrumentKey]; !dup {
				seen[sel.InstrumentKey] = struct{}{}
				keys = append(keys, sel.InstrumentKey)
			}
		}
	}
	return keys
}

type familyStatus struct {
	Name        string    `json:"name"`
	Instrument  string    `json:"instrument"`
	Expiry      string    `json:"expiry"`
	LastPrice   float64   `json:"last_price"`
	Tracked     int       `json:"tracked_options"`
	LastRefresh time.Time `json:"last_refresh"`
}

func (p *poller) status() []familyStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]familyStatus, 0, len(p.families))
	for _, f := range p.families {
		out = append(out, familyStatus{
			Name:        f.cfg.Name,
			Instrument:  f.cfg.InstrumentKey,
			Expiry:      f.cfg.Expiry,
			LastPrice:   f.lastPrice,
			Tracked:     len(f.options),
			LastRefresh: f.lastRefresh,
		})
	}
	return out
}
