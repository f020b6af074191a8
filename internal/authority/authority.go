// Package authority classifies WHO controls a token contract.
//
// A capability is only dangerous in context: mint() behind a renounced
// owner is inert, mint() behind a single EOA is a loaded gun. The
// classifier resolves the owner address and inspects the code deployed
// at it to decide between renounced, multisig, dao_timelock,
// known_entity, single_eoa, and unknown.
package authority

import "context"

// ControllerType identifies the kind of entity holding admin authority.
type ControllerType string

const (
	// ControllerRenounced means ownership was given up (zero/burn owner,
	// or corroborated renouncement).
	ControllerRenounced ControllerType = "renounced"
	// ControllerMultisig means the owner is a contract with a
	// delegatecall pattern (Gnosis Safe style proxy).
	ControllerMultisig ControllerType = "multisig"
	// ControllerDAOTimelock means the owner is a non-proxy contract,
	// likely a timelock or governor.
	ControllerDAOTimelock ControllerType = "dao_timelock"
	// ControllerKnownEntity means the token itself is a known
	// institutional custodian (WBTC, USDC, ...).
	ControllerKnownEntity ControllerType = "known_entity"
	// ControllerSingleEOA means the owner is an externally-owned account.
	ControllerSingleEOA ControllerType = "single_eoa"
	// ControllerUnknown means the owner could not be determined.
	ControllerUnknown ControllerType = "unknown"
)

// Controller is the classification result. Immutable once produced;
// exactly one Controller exists per analysis and is attributed uniformly
// to every capability.
type Controller struct {
	Type       ControllerType `json:"type"`
	Owner      string         `json:"owner,omitempty"` // empty when no owner resolved
	Confidence float64        `json:"confidence"`      // 0.0 (unknown) to 1.0 (certain)
}

// CodeReader reads deployed account code. Failures are non-fatal to the
// caller: any error downgrades the classification to unknown rather than
// aborting the analysis.
type CodeReader interface {
	CodeAt(ctx context.Context, address string) ([]byte, error)
}

// Caller issues a read-only contract call and returns the raw result.
type Caller interface {
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
}

// Well-known addresses.
const (
	ZeroAddress = "0x0000000000000000000000000000000000000000"
	BurnAddress = "0x000000000000000000000000000000000000dead"
)

// IsRenouncedOwner reports whether an owner address means ownership was
// given up. Comparison is case-insensitive on the hex payload; callers
// pass lower-cased addresses.
func IsRenouncedOwner(owner string) bool {
	return owner == ZeroAddress || owner == BurnAddress
}
