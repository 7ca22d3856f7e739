// Package chain resolves the tradable option band around an underlying's
// at-the-money strike.
package chain

import (
	"math"

	"gammawatch/internal/upstox"
)

const (
	TypeCall = "CE"
	TypePut  = "PE"
)

// Selected is one picked contract of the ATM±N band.
type Selected struct {
	InstrumentKey string
	TradingSymbol string
	Strike        int
	Type          string
}

// RoundStrike rounds an underlying price to the nearest multiple of the
// family's strike step (50 for NIFTY, 100 for BANKNIFTY).
func RoundStrike(price float64, step int) int {
	if step <= 0 {
		return int(math.Round(price))
	}
	return int(math.Round(price/float64(step))) * step
}

// SelectATMBand picks, independently for calls and puts, the contracts at the
// N strikes on either side of the ATM strike. The window is clipped at the
// edges of the available strikes, never padded. All call picks come first,
// then all puts, each in ascending strike order.
func SelectATMBand(contracts []upstox.OptionContract, atmStrike, perSide int) []Selected {
	var out []Selected
	for _, typ := range []string{TypeCall, TypePut} {
		strikes := distinctStrikes(contracts, typ)
		if len(strikes) == 0 {
			continue
		}

		// First minimum while scanning ascending, so ties go to the lower strike.
		atmIdx := 0
		best := absDiff(strikes[0], atmStrike)
		for i := 1; i < len(strikes); i++ {
			if d := absDiff(strikes[i], atmStrike); d < best {
				best = d
				atmIdx = i
			}
		}

		start := atmIdx - perSide
		if start < 0 {
			start = 0
		}
		end := atmIdx + perSide
		if end > len(strikes)-1 {
			end = len(strikes) - 1
		}

		for _, s := range strikes[start : end+1] {
			for _, c := range contracts {
				if c.InstrumentType == typ && int(c.StrikePrice) == s {
					out = append(out, Selected{
						InstrumentKey: c.InstrumentKey,
						TradingSymbol: c.TradingSymbol,
						Strike:        s,
						Type:          typ,
					})
					break
				}
			}
		}
	}
	return out
}

func distinctStrikes(contracts []upstox.OptionContract, typ string) []int {
	seen := make(map[int]struct{})
	var strikes []int
	for _, c := range contracts {
		if c.InstrumentType != typ {
			continue
		}
		s := int(c.StrikePrice)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		strikes = append(strikes, s)
	}
	// insertion sort; chains are small
	for i := 1; i < len(strikes); i++ {
		for j := i; j > 0 && strikes[j-1] > strikes[j]; j-- {
			strikes[j-1], strikes[j] = strikes[j], strikes[j-1]
		}
	}
	return strikes
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
