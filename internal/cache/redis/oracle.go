package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// defaultMaxQuoteAge is how old a cached quote may be before the oracle
// refuses to act on it.
const defaultMaxQuoteAge = 30 * time.Second

// CacheOracle implements domain.PriceOracle on top of the price cache. It
// compares venue-scoped quotes for a configured universe of assets and
// surfaces cross-venue discrepancies.
type CacheOracle struct {
	pc          *PriceCache
	assets      []string
	venues      []string
	maxQuoteAge time.Duration
	now         func() time.Time
}

// NewCacheOracle creates a CacheOracle watching the given assets across the
// given venues. maxQuoteAge bounds quote staleness; zero uses the default.
func NewCacheOracle(pc *PriceCache, assets, venues []string, maxQuoteAge time.Duration) *CacheOracle {
	if maxQuoteAge <= 0 {
		maxQuoteAge = defaultMaxQuoteAge
	}
	return &CacheOracle{
		pc:          pc,
		assets:      assets,
		venues:      venues,
		maxQuoteAge: maxQuoteAge,
		now:         time.Now,
	}
}

// CurrentPrice returns the freshest venue quote for the asset, or
// domain.ErrPriceUnavailable when no venue has a usable quote.
func (o *CacheOracle) CurrentPrice(ctx context.Context, asset string) (float64, error) {
	now := o.now()
	var (
		best   float64
		bestTs time.Time
		found  bool
	)
	for _, venue := range o.venues {
		price, ts, err := o.pc.GetPrice(ctx, VenueAsset(venue, asset))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return 0, fmt.Errorf("oracle: current price %s: %w", asset, err)
		}
		if now.Sub(ts) > o.maxQuoteAge {
			continue
		}
		if !found || ts.After(bestTs) {
			best, bestTs, found = price, ts, true
		}
	}
	if !found {
		return 0, domain.ErrPriceUnavailable
	}
	return best, nil
}

// FindDiscrepancies scans the configured asset universe and returns every
// cross-venue signal whose spread is at least minSpreadPct percent. Stale
// quotes are ignored rather than reported.
func (o *CacheOracle) FindDiscrepancies(ctx context.Context, minSpreadPct float64) ([]domain.PriceDiscrepancy, error) {
	now := o.now()
	var out []domain.PriceDiscrepancy

	for _, asset := range o.assets {
		var (
			lo, hi           float64
			loVenue, hiVenue string
			quotes           int
		)
		for _, venue := range o.venues {
			price, ts, err := o.pc.GetPrice(ctx, VenueAsset(venue, asset))
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("oracle: scan %s: %w", asset, err)
			}
			if price <= 0 || now.Sub(ts) > o.maxQuoteAge {
				continue
			}
			if quotes == 0 || price < lo {
				lo, loVenue = price, venue
			}
			if quotes == 0 || price > hi {
				hi, hiVenue = price, venue
			}
			quotes++
		}
		if quotes < 2 || loVenue == hiVenue {
			continue
		}

		spreadPct := (hi - lo) / lo * 100
		if spreadPct < minSpreadPct {
			continue
		}
		out = append(out, domain.PriceDiscrepancy{
			Asset:      asset,
			BuyVenue:   loVenue,
			SellVenue:  hiVenue,
			BuyPrice:   lo,
			SellPrice:  hi,
			SpreadPct:  spreadPct,
			ObservedAt: now,
		})
	}

	return out, nil
}

// Compile-time interface check.
var _ domain.PriceOracle = (*CacheOracle)(nil)
