// Package notify delivers signal alerts: cooldown gating, Telegram send,
// CSV audit log and dashboard broadcast. Delivery failures are logged and
// swallowed so a dead transport never interrupts the polling loop.
package notify

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gammawatch/internal/profile"
	"gammawatch/internal/signals"
)

// Event is the wire form of a dispatched alert, replayed to dashboard clients.
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Instrument string    `json:"instrument"`
	Symbol     string    `json:"symbol,omitempty"`
	Price      float64   `json:"price"`
	Text       string    `json:"text"`
	At         time.Time `json:"at"`
}

type Sink struct {
	mu        sync.Mutex
	lastFired map[string]time.Time // instrument|kind

	botToken   string
	chatID     string
	apiBase    string
	cooldown   time.Duration
	httpClient *http.Client
	log        *logrus.Logger
	broadcast  func(Event)
	now        func() time.Time
}

func NewSink(botToken, chatID string, cooldown time.Duration, log *logrus.Logger, broadcast func(Event)) *Sink {
	return &Sink{
		lastFired:  make(map[string]time.Time),
		botToken:   botToken,
		chatID:     chatID,
		apiBase:    "https://api.telegram.org",
		cooldown:   cooldown,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
		broadcast:  broadcast,
		now:        time.Now,
	}
}

// Dispatch formats and delivers one alert unless the same kind fired for the
// same instrument within the cooldown window. Suppressed alerts are recorded
// but not delivered.
func (s *Sink) Dispatch(a signals.Alert) {
	key := a.Instrument + "|" + string(a.Kind)

	s.mu.Lock()
	now := s.now()
	if last, ok := s.lastFired[key]; ok && now.Sub(last) < s.cooldown {
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"instrument": a.Instrument,
			"kind":       a.Kind,
		}).Debug("alert suppressed by cooldown")
		return
	}
	s.lastFired[key] = now
	s.mu.Unlock()

	name := a.Instrument
	if a.Symbol != "" {
		name = a.Symbol
	}
	text := fmt.Sprintf("%s\n%s @ %.2f\n%s", a.Kind.Title(), name, a.Price, a.Info)

	ev := Event{
		ID:         uuid.NewString(),
		Kind:       string(a.Kind),
		Instrument: a.Instrument,
		Symbol:     a.Symbol,
		Price:      a.Price,
		Text:       text,
		At:         a.Time,
	}

	s.send(text)
	if err := appendCSV(a); err != nil {
		s.log.WithError(err).Warn("alert csv append failed")
	}
	if s.broadcast != nil {
		s.broadcast(ev)
	}
	s.log.WithFields(logrus.Fields{
		"instrument": a.Instrument,
		"kind":       a.Kind,
		"price":      a.Price,
	}).Info("alert dispatched")
}

// Snapshot announces a freshly rebuilt market profile. Snapshots are
// informational and bypass cooldown gating.
func (s *Sink) Snapshot(family string, p *profile.Profile) {
	text := fmt.Sprintf("%s MP\nPOC: %.1f\nVAH: %.1f\nVAL: %.1f", family, p.POC, p.VAH, p.VAL)
	if !math.IsNaN(p.High) && !math.IsNaN(p.Low) {
		text += fmt.Sprintf("\nDay H/L: %.1f / %.1f", p.High, p.Low)
	}
	s.send(text)
	if s.broadcast != nil {
		s.broadcast(Event{
			ID:         uuid.NewString(),
			Kind:       "profile",
			Instrument: family,
			Price:      p.POC,
			Text:       text,
			At:         s.now(),
		})
	}
}

// send posts to the Telegram sendMessage endpoint. Without a configured bot
// the text goes to the log only.
func (s *Sink) send(text string) {
	if s.botToken == "" || s.chatID == "" {
		s.log.WithField("text", strings.ReplaceAll(text, "\n", " | ")).Info("telegram not configured")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", text)
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		s.log.WithError(err).Warn("telegram request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.WithError(err).Warn("telegram send failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.WithField("status", resp.StatusCode).Warn("telegram send rejected")
	}
}
