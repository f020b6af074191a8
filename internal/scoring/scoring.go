// Package scoring fuses the capability, authority, liquidity, and holder
// evidence into the final risk verdict.
//
// Four sub-scores are kept strictly separate. MRR is the probability of
// deliberate theft, blocking, or trapping. SCR measures power
// concentration and is reported on its own, never blended into rug risk.
// MFR measures how fragile and manipulable the market structure is. UF
// accumulates uncertainty from missing or immature data and becomes the
// confidence the report carries.
package scoring

import (
	"github.com/mbd888/rugscan/internal/authority"
	"github.com/mbd888/rugscan/internal/capability"
)

// Severity grades a signal for display.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityInfo     Severity = "info"
)

// Signal is one human-readable finding attached to a report.
type Signal struct {
	Title         string   `json:"title"`
	Severity      Severity `json:"severity"`
	Description   string   `json:"description"`
	EvidenceLinks []string `json:"evidenceLinks"`
}

// Tier buckets the composite risk score.
type Tier string

const (
	TierLow     Tier = "low"
	TierMedium  Tier = "medium"
	TierHigh    Tier = "high"
	TierExtreme Tier = "extreme"
)

// Tier thresholds on the composite score.
const (
	tierMediumFloor  = 35
	tierHighFloor    = 60
	tierExtremeFloor = 80
)

// ContractInput carries the capability graph and its authority context.
type ContractInput struct {
	Capabilities       []capability.Capability
	Controller         authority.Controller
	Verified           bool
	IsProxy            bool
	OwnershipRenounced bool
}

// LiquidityInput carries market structure evidence. Pointer fields
// distinguish "not observed" from zero; a nil field always scores as
// missing data, never as a zero value.
type LiquidityInput struct {
	LiquidityUSD      *float64 // primary pair
	TotalLiquidityUSD *float64 // across all pairs
	FDVUSD            *float64
	Volume24hUSD      *float64
	PairCount         int
	PairURL           string
	TokenAgeDays      *float64
}

// HolderInput carries supply distribution evidence.
type HolderInput struct {
	Unavailable bool
	Top1Pct     *float64 // top holder, percent of supply
	Top10Pct    *float64 // top 10 holders combined, percent of supply
}

// Result is the fused verdict.
type Result struct {
	RiskScore   int      `json:"riskScore"` // MRR + 0.6*MFR, clamped
	Tier        Tier     `json:"tier"`
	MRR         int      `json:"mrr"`
	SCR         int      `json:"scr"` // reported separately, never mixed in
	MFR         int      `json:"mfr"`
	Uncertainty float64  `json:"uncertainty"`
	Confidence  float64  `json:"confidence"` // 1 - Uncertainty, 2 decimals
	Signals     []Signal `json:"signals"`
}

func tierFor(score int) Tier {
	switch {
	case score >= tierExtremeFloor:
		return TierExtreme
	case score >= tierHighFloor:
		return TierHigh
	case score >= tierMediumFloor:
		return TierMedium
	default:
		return TierLow
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
