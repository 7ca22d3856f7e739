package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL         = "https://api.upstox.com/v2"
	defaultBucketSize      = 10.0
	defaultRefreshMinutes  = 15
	defaultPollIntervalSec = 1.0
	defaultMinTickSec      = 0.35
	defaultVolumeMult      = 3.0
	defaultSmallMovePct    = 0.20
	defaultGammaMovePct    = 1.00
	defaultLookbackTicks   = 25
	defaultRecentHFTSec    = 30
	defaultCooldownSec     = 90
	defaultStrikesPerSide  = 3
	defaultServerPort      = 8089
)

// Config keeps the runtime configuration for the bot. It is built once at
// startup and never mutated afterwards.
type Config struct {
	AccessToken string
	BaseURL     string

	BotToken string
	ChatID   string

	BucketSize     float64
	ProfileRefresh time.Duration
	PollInterval   time.Duration

	MinTickInterval time.Duration
	HFTVolumeMult   float64
	SmallMovePct    float64
	GammaMovePct    float64
	LookbackTicks   int
	RecentHFTWindow time.Duration
	AlertCooldown   time.Duration
	StrikesPerSide  int

	ServerPort int
}

// Load builds Config from environment variables. ACCESS_TOKEN is the only
// hard requirement; every tunable falls back to the stock defaults.
func Load() (*Config, error) {
	token := strings.TrimSpace(os.Getenv("ACCESS_TOKEN"))
	if token == "" {
		return nil, errors.New("ACCESS_TOKEN is required")
	}

	bucket, err := getFloat("PRICE_BUCKET_SIZE", defaultBucketSize)
	if err != nil {
		return nil, err
	}
	refreshMin, err := getInt("MP_REFRESH_MINUTES", defaultRefreshMinutes)
	if err != nil {
		return nil, err
	}
	pollSec, err := getFloat("POLL_INTERVAL_SEC", defaultPollIntervalSec)
	if err != nil {
		return nil, err
	}
	minTickSec, err := getFloat("MIN_TICK_INTERVAL_SEC", defaultMinTickSec)
	if err != nil {
		return nil, err
	}
	volMult, err := getFloat("HFT_VOLUME_MULTIPLIER", defaultVolumeMult)
	if err != nil {
		return nil, err
	}
	smallPct, err := getFloat("PRICE_MOVE_SMALL_PCT", defaultSmallMovePct)
	if err != nil {
		return nil, err
	}
	gammaPct, err := getFloat("PRICE_MOVE_GAMMA_PCT", defaultGammaMovePct)
	if err != nil {
		return nil, err
	}
	lookback, err := getInt("LOOKBACK_TICKS_FOR_BASE", defaultLookbackTicks)
	if err != nil {
		return nil, err
	}
	recentSec, err := getInt("RECENT_HFT_SEC", defaultRecentHFTSec)
	if err != nil {
		return nil, err
	}
	cooldownSec, err := getInt("ALERT_COOLDOWN_SEC", defaultCooldownSec)
	if err != nil {
		return nil, err
	}
	perSide, err := getInt("STRIKES_EACH_SIDE", defaultStrikesPerSide)
	if err != nil {
		return nil, err
	}
	port, err := getInt("PORT", defaultServerPort)
	if err != nil {
		return nil, err
	}

	if bucket <= 0 {
		bucket = defaultBucketSize
	}
	if pollSec <= 0 {
		pollSec = defaultPollIntervalSec
	}
	if lookback < 2 {
		lookback = defaultLookbackTicks
	}
	if perSide < 0 {
		perSide = defaultStrikesPerSide
	}

	return &Config{
		AccessToken:     token,
		BaseURL:         getString("UPSTOX_BASE_URL", defaultBaseURL),
		BotToken:        strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		ChatID:          strings.TrimSpace(os.Getenv("CHAT_ID")),
		BucketSize:      bucket,
		ProfileRefresh:  time.Duration(refreshMin) * time.Minute,
		PollInterval:    secondsDuration(pollSec),
		MinTickInterval: secondsDuration(minTickSec),
		HFTVolumeMult:   volMult,
		SmallMovePct:    smallPct,
		GammaMovePct:    gammaPct,
		LookbackTicks:   lookback,
		RecentHFTWindow: time.Duration(recentSec) * time.Second,
		AlertCooldown:   time.Duration(cooldownSec) * time.Second,
		StrikesPerSide:  perSide,
		ServerPort:      port,
	}, nil
}

func secondsDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}
