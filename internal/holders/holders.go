// Package holders derives supply concentration features from explorer
// holder lists. Any failure along the way produces an "unavailable"
// snapshot: missing holder data raises uncertainty downstream, never
// risk.
package holders

import (
	"context"
	"log/slog"
	"math"

	"github.com/mbd888/rugscan/internal/explorer"
)

// Snapshot is the holder distribution view of a token.
type Snapshot struct {
	Unavailable bool     `json:"holdersUnavailable"`
	Top1Pct     *float64 `json:"top1Concentration"`
	Top10Pct    *float64 `json:"top10Concentration"`
}

// Unavailable is the snapshot used when holder data cannot be obtained.
func Unavailable() Snapshot {
	return Snapshot{Unavailable: true}
}

// Source supplies the raw explorer data the analyzer needs.
type Source interface {
	Supports(chain string) bool
	TopHolders(ctx context.Context, chain, address string) ([]explorer.Holder, error)
	TotalSupply(ctx context.Context, chain, address string) (float64, error)
}

// Analyzer computes concentration percentages against total supply.
type Analyzer struct {
	source Source
	logger *slog.Logger
}

// NewAnalyzer creates a holder analyzer over an explorer source.
func NewAnalyzer(source Source, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{source: source, logger: logger}
}

// Analyze returns the holder snapshot for a token. Never fails: every
// error path degrades to Unavailable().
func (a *Analyzer) Analyze(ctx context.Context, chain, address string) Snapshot {
	if !a.source.Supports(chain) {
		return Unavailable()
	}

	holders, err := a.source.TopHolders(ctx, chain, address)
	if err != nil || len(holders) == 0 {
		if err != nil {
			a.logger.Debug("holder list unavailable", "chain", chain, "address", address, "error", err)
		}
		return Unavailable()
	}

	supply, err := a.source.TotalSupply(ctx, chain, address)
	if err != nil || supply <= 0 {
		if err != nil {
			a.logger.Debug("total supply unavailable", "chain", chain, "address", address, "error", err)
		}
		return Unavailable()
	}

	top1 := round2(holders[0].Quantity / supply * 100)

	var top10Balance float64
	for i, h := range holders {
		if i >= 10 {
			break
		}
		top10Balance += h.Quantity
	}
	top10 := round2(top10Balance / supply * 100)

	return Snapshot{Top1Pct: &top1, Top10Pct: &top10}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
