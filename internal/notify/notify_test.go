package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gammawatch/internal/profile"
	"gammawatch/internal/signals"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testAlert(kind signals.Kind, at time.Time) signals.Alert {
	return signals.Alert{
		Kind:       kind,
		Instrument: "NSE_FO|12345",
		Symbol:     "NIFTY 20000 CE",
		Price:      123.45,
		Time:       at,
		Info:       "test",
	}
}

// chdir switches to dir for the duration of the test; t.Chdir needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func newTestSink(t *testing.T, handler http.HandlerFunc) (*Sink, *atomic.Int64) {
	t.Helper()
	chdir(t, t.TempDir()) // keep the csv audit log out of the source tree

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if handler != nil {
			handler(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	s := NewSink("token", "chat", 90*time.Second, quietLogger(), nil)
	s.apiBase = srv.URL
	return s, &calls
}

func TestDispatchCooldown(t *testing.T) {
	s, calls := newTestSink(t, nil)
	now := time.Date(2025, 11, 25, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Dispatch(testAlert(signals.KindHFTFootprint, now))
	assert.Equal(t, int64(1), calls.Load())

	// Same kind, same instrument, inside the window: suppressed.
	now = now.Add(30 * time.Second)
	s.Dispatch(testAlert(signals.KindHFTFootprint, now))
	assert.Equal(t, int64(1), calls.Load())

	// Different kind on the same instrument is independent.
	s.Dispatch(testAlert(signals.KindGammaBlast, now))
	assert.Equal(t, int64(2), calls.Load())

	// Cooldown elapsed: fires again.
	now = now.Add(91 * time.Second)
	s.Dispatch(testAlert(signals.KindHFTFootprint, now))
	assert.Equal(t, int64(3), calls.Load())
}

func TestDispatchSurvivesTransportFailure(t *testing.T) {
	s, calls := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	now := time.Now()

	// Must not panic or propagate anything.
	s.Dispatch(testAlert(signals.KindTrappedSellersBuy, now))
	assert.Equal(t, int64(1), calls.Load())
}

func TestDispatchBroadcasts(t *testing.T) {
	chdir(t, t.TempDir())
	var got []Event
	s := NewSink("", "", time.Minute, quietLogger(), func(ev Event) { got = append(got, ev) })

	s.Dispatch(testAlert(signals.KindInitiativeBuy, time.Now()))
	require.Len(t, got, 1)
	assert.Equal(t, "initiative_buy", got[0].Kind)
	assert.NotEmpty(t, got[0].ID)
	assert.Contains(t, got[0].Text, "Initiative Buying")
	assert.Contains(t, got[0].Text, "NIFTY 20000 CE")
}

func TestSnapshotBypassesCooldown(t *testing.T) {
	s, calls := newTestSink(t, nil)
	p := &profile.Profile{POC: 19900, VAH: 19950, VAL: 19850, High: 20010, Low: 19790}

	s.Snapshot("NIFTY", p)
	s.Snapshot("NIFTY", p)
	assert.Equal(t, int64(2), calls.Load())
}
