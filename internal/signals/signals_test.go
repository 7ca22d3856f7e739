package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gammawatch/internal/profile"
)

var t0 = time.Date(2025, 11, 25, 10, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		MinTickInterval: 350 * time.Millisecond,
		VolumeMult:      3.0,
		SmallMovePct:    0.20,
		GammaMovePct:    1.00,
		LookbackTicks:   5,
		RecentHFTWindow: 30 * time.Second,
	}
}

func indexEngine() *Engine {
	e := NewEngine(testConfig())
	e.SetProfile("IDX", &profile.Profile{POC: 110, VAH: 120, VAL: 100})
	return e
}

func kinds(alerts []Alert) []Kind {
	out := make([]Kind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}

func TestTrappedSellersBuy(t *testing.T) {
	e := indexEngine()
	assert.Empty(t, e.OnIndexTick("IDX", 99, t0)) // first tick, no previous
	got := e.OnIndexTick("IDX", 101, t0.Add(time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, KindTrappedSellersBuy, got[0].Kind)
	assert.Equal(t, 101.0, got[0].Price)

	// Already above VAL: no re-entry.
	assert.Empty(t, e.OnIndexTick("IDX", 102, t0.Add(2*time.Second)))
}

func TestTrappedSellersBuyBoundary(t *testing.T) {
	e := indexEngine()
	e.OnIndexTick("IDX", 99, t0)
	// Re-entry at exactly VAL fires.
	got := e.OnIndexTick("IDX", 100, t0.Add(time.Second))
	assert.Equal(t, []Kind{KindTrappedSellersBuy}, kinds(got))
}

func TestTrappedBuyersSell(t *testing.T) {
	e := indexEngine()
	e.OnIndexTick("IDX", 121, t0)
	got := e.OnIndexTick("IDX", 120, t0.Add(time.Second))
	assert.Equal(t, []Kind{KindTrappedBuyersSell}, kinds(got))
}

func TestInitiativeBreakouts(t *testing.T) {
	e := indexEngine()
	e.OnIndexTick("IDX", 110, t0)
	got := e.OnIndexTick("IDX", 121, t0.Add(time.Second))
	assert.Equal(t, []Kind{KindInitiativeBuy}, kinds(got))

	e = indexEngine()
	e.OnIndexTick("IDX", 110, t0)
	got = e.OnIndexTick("IDX", 99, t0.Add(time.Second))
	assert.Equal(t, []Kind{KindInitiativeSell}, kinds(got))
}

func TestIndexRulesNeedProfile(t *testing.T) {
	e := NewEngine(testConfig())
	e.OnIndexTick("IDX", 99, t0)
	assert.Empty(t, e.OnIndexTick("IDX", 101, t0.Add(time.Second)))

	// Profile swapped in later: rules engage.
	e.SetProfile("IDX", &profile.Profile{POC: 110, VAH: 120, VAL: 100})
	e.OnIndexTick("IDX", 99, t0.Add(2*time.Second))
	got := e.OnIndexTick("IDX", 101, t0.Add(3*time.Second))
	assert.Equal(t, []Kind{KindTrappedSellersBuy}, kinds(got))
}

// seedBaseline pushes slow steady ticks so the rolling volume baseline is
// vol 100 per tick and the engine has a previous tick to compare against.
func seedBaseline(e *Engine) time.Time {
	at := t0
	vols := []float64{1000, 1100, 1200}
	for i, v := range vols {
		e.OnOptionTick("OPT", "NIFTY 20000 CE", 100, v, at.Add(time.Duration(i)*time.Second))
	}
	return at.Add(time.Duration(len(vols)-1) * time.Second)
}

func TestHFTFootprintFires(t *testing.T) {
	e := NewEngine(testConfig())
	last := seedBaseline(e)

	// 300ms gap, volume +400 (4x the 100 baseline), price move 0.1%.
	got := e.OnOptionTick("OPT", "NIFTY 20000 CE", 100.1, 1600, last.Add(300*time.Millisecond))
	assert.Equal(t, []Kind{KindHFTFootprint}, kinds(got))
}

func TestHFTFootprintNeedsAllThreeConditions(t *testing.T) {
	// Slow tick: interval 500ms >= 350ms floor.
	e := NewEngine(testConfig())
	last := seedBaseline(e)
	assert.Empty(t, e.OnOptionTick("OPT", "X", 100.1, 1600, last.Add(500*time.Millisecond)))

	// Volume delta only 2x baseline.
	e = NewEngine(testConfig())
	last = seedBaseline(e)
	assert.Empty(t, e.OnOptionTick("OPT", "X", 100.1, 1400, last.Add(300*time.Millisecond)))

	// Price shock 0.5% is not a "small move" footprint.
	e = NewEngine(testConfig())
	last = seedBaseline(e)
	assert.Empty(t, e.OnOptionTick("OPT", "X", 100.5, 1600, last.Add(300*time.Millisecond)))
}

func TestGammaBlastAfterFootprint(t *testing.T) {
	e := NewEngine(testConfig())
	last := seedBaseline(e)
	burstAt := last.Add(300 * time.Millisecond)
	got := e.OnOptionTick("OPT", "X", 100.1, 1600, burstAt)
	require.Equal(t, []Kind{KindHFTFootprint}, kinds(got))

	// 1.2% above the pre-burst base (100) within the armed window.
	got = e.OnOptionTick("OPT", "X", 101.2, 1650, burstAt.Add(5*time.Second))
	assert.Equal(t, []Kind{KindGammaBlast}, kinds(got))

	// State machine returned to normal: same move does not re-fire.
	assert.Empty(t, e.OnOptionTick("OPT", "X", 101.3, 1700, burstAt.Add(6*time.Second)))
}

func TestGammaBlastWindowExpires(t *testing.T) {
	e := NewEngine(testConfig())
	last := seedBaseline(e)
	burstAt := last.Add(300 * time.Millisecond)
	require.Equal(t, []Kind{KindHFTFootprint}, kinds(e.OnOptionTick("OPT", "X", 100.1, 1600, burstAt)))

	// Large move, but 40s after the footprint: armed state already expired.
	got := e.OnOptionTick("OPT", "X", 101.5, 1650, burstAt.Add(40*time.Second))
	assert.Empty(t, got)
}

func TestGammaBlastNeedsFootprint(t *testing.T) {
	e := NewEngine(testConfig())
	last := seedBaseline(e)
	// Big move without a preceding footprint: nothing fires.
	got := e.OnOptionTick("OPT", "X", 102, 1300, last.Add(time.Second))
	assert.Empty(t, got)
}
