// Package capability builds the capability graph for a token contract:
// the set of dangerous administrative functions the contract can execute.
//
// Detection runs in two passes: known 4-byte selectors in the deployed
// bytecode, then risky function names in the verified ABI when one is
// available. A capability is never a risk verdict on its own — scoring
// always pairs it with the controller that can invoke it.
package capability

import (
	"errors"
)

// ErrNotAContract is returned when the address has no deployed bytecode.
// This is the only hard failure in the builder: without bytecode there is
// nothing to analyze.
var ErrNotAContract = errors.New("address is not a contract (no bytecode)")

// Name is the canonical name of a dangerous capability. A contract holds
// at most one capability per name.
type Name string

const (
	NameMint              Name = "mint"
	NameBlacklist         Name = "blacklist"
	NamePause             Name = "pause"
	NameUnpause           Name = "unpause"
	NameSetFee            Name = "setFee"
	NameSetTrading        Name = "setTrading"
	NameTransferOwnership Name = "transferOwnership"
	NameRenounceOwnership Name = "renounceOwnership"
)

// Source records which detection pass found a capability.
type Source string

const (
	SourceBytecode Source = "bytecode"
	SourceABI      Source = "abi"
)

// RiskLevel is the intrinsic severity of a capability, before any
// controller context is applied.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskInfo     RiskLevel = "info"
)

// Capability is one dangerous function detected on a contract.
type Capability struct {
	Name      Name      `json:"capability"`
	Selector  string    `json:"selector,omitempty"` // 0x-prefixed 4-byte selector, empty when not computable
	Source    Source    `json:"source"`
	RiskLevel RiskLevel `json:"riskLevel"`
}

// ABIInput is a single function parameter in an interface description.
type ABIInput struct {
	Type string `json:"type"`
}

// ABIEntry is one entry of a contract's interface description. Only
// entries with Type == "function" are considered.
type ABIEntry struct {
	Type   string     `json:"type"`
	Name   string     `json:"name"`
	Inputs []ABIInput `json:"inputs"`
}

// RiskLevelTable maps capability names to their base risk level. The
// table is configuration data (see the policy package), not code: it can
// be versioned independently.
type RiskLevelTable map[Name]RiskLevel

// DefaultRiskLevels returns the built-in base risk level per capability.
func DefaultRiskLevels() RiskLevelTable {
	return RiskLevelTable{
		NameMint:              RiskCritical,
		NameBlacklist:         RiskCritical,
		NamePause:             RiskHigh,
		NameUnpause:           RiskHigh,
		NameSetFee:            RiskHigh,
		NameSetTrading:        RiskHigh,
		NameTransferOwnership: RiskMedium,
		NameRenounceOwnership: RiskInfo,
	}
}

// levelFor returns the configured risk level, defaulting to medium for
// names the table does not cover.
func (t RiskLevelTable) levelFor(name Name) RiskLevel {
	if lvl, ok := t[name]; ok {
		return lvl
	}
	return RiskMedium
}
