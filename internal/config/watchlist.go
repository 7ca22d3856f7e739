package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Family is one tracked index underlying: the index instrument itself plus the
// parameters used to derive its option band.
type Family struct {
	Name          string  `yaml:"name"`
	InstrumentKey string  `yaml:"instrument_key"`
	StrikeStep    int     `yaml:"strike_step"`
	BucketSize    float64 `yaml:"bucket_size,omitempty"`
	Expiry        string  `yaml:"expiry,omitempty"`
}

type watchlistFile struct {
	Watchlist []Family `yaml:"watchlist"`
}

// LoadWatchlist reads the index families from a YAML file. A per-family expiry
// can be overridden through the environment (e.g. NIFTY_EXPIRY for "nifty").
func LoadWatchlist(path string, defaultBucket float64) ([]Family, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wl watchlistFile
	if err := yaml.Unmarshal(b, &wl); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make([]Family, 0, len(wl.Watchlist))
	seen := make(map[string]struct{})
	for _, f := range wl.Watchlist {
		f.Name = strings.TrimSpace(f.Name)
		f.InstrumentKey = strings.TrimSpace(f.InstrumentKey)
		if f.Name == "" || f.InstrumentKey == "" {
			continue
		}
		if _, dup := seen[f.InstrumentKey]; dup {
			continue
		}
		seen[f.InstrumentKey] = struct{}{}
		if f.StrikeStep <= 0 {
			return nil, fmt.Errorf("watchlist: %s needs a positive strike_step", f.Name)
		}
		if f.BucketSize <= 0 {
			f.BucketSize = defaultBucket
		}
		if env := strings.TrimSpace(os.Getenv(expiryEnvKey(f.Name))); env != "" {
			f.Expiry = env
		}
		if f.Expiry == "" {
			return nil, fmt.Errorf("watchlist: %s has no expiry (set %s or the yaml field)", f.Name, expiryEnvKey(f.Name))
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("watchlist %s is empty", path)
	}
	return out, nil
}

func expiryEnvKey(name string) string {
	up := strings.ToUpper(strings.TrimSpace(name))
	up = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, up)
	return up + "_EXPIRY"
}
