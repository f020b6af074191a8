// Package analysis orchestrates the full token analysis pipeline:
// bytecode fetch, capability graph, authority classification, liquidity
// and holder features, risk fusion, and report persistence.
package analysis

import (
	"errors"
	"time"

	"github.com/mbd888/rugscan/internal/authority"
	"github.com/mbd888/rugscan/internal/capability"
	"github.com/mbd888/rugscan/internal/holders"
	"github.com/mbd888/rugscan/internal/liquidity"
	"github.com/mbd888/rugscan/internal/scoring"
)

// ErrNotFound is returned when no report exists for a token.
var ErrNotFound = errors.New("report not found")

// AttributedCapability is a capability with the controller context
// copied onto it at attribution time. One controller per analysis,
// attributed uniformly to every capability.
type AttributedCapability struct {
	capability.Capability
	ControllerType       authority.ControllerType `json:"controllerType"`
	ControllerAddress    string                   `json:"controllerAddress,omitempty"`
	ControllerConfidence float64                  `json:"controllerConfidence"`
}

// ContractAnalysis is the on-chain view of the analyzed contract.
type ContractAnalysis struct {
	IsProxy            bool                   `json:"isProxy"`
	Verified           bool                   `json:"verified"`
	OwnershipRenounced bool                   `json:"ownershipRenounced"`
	Capabilities       []AttributedCapability `json:"capabilities"`
	Controller         authority.Controller   `json:"controller"`
	OwnerAddress       string                 `json:"ownerAddress,omitempty"`
}

// Report is the complete analysis result for one token, as persisted
// and served.
type Report struct {
	Chain          string             `json:"chain"`
	Address        string             `json:"address"`
	RiskScore      int                `json:"riskScore"`
	RiskTier       scoring.Tier       `json:"riskTier"`
	MRR            int                `json:"mrr"`
	SCR            int                `json:"scr"`
	MFR            int                `json:"mfr"`
	UF             float64            `json:"uf"`
	Confidence     float64            `json:"confidence"`
	Signals        []scoring.Signal   `json:"signals"`
	Contract       ContractAnalysis   `json:"contractAnalysis"`
	Liquidity      liquidity.Snapshot `json:"liquidityAnalysis"`
	Holders        holders.Snapshot   `json:"holderAnalysis"`
	TokenName      string             `json:"tokenName,omitempty"`
	TokenSymbol    string             `json:"tokenSymbol,omitempty"`
	PriceUSD       *float64           `json:"priceUsd,omitempty"`
	PriceChange24h *float64           `json:"priceChange24h,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}
