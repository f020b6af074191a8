package authority

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/mbd888/rugscan/internal/capability"
)

// ownerSelector is the 4-byte selector for owner().
const ownerSelector = "\x8d\xa5\xcb\x5b"

// DefaultCallTimeout bounds each owner-resolution or code-inspection RPC.
// A slow node must degrade the classification, not stall the pipeline.
const DefaultCallTimeout = 10 * time.Second

// Classifier determines the authority context for a contract.
type Classifier struct {
	custodians map[string]bool // token addresses that are known custodians
	reader     CodeReader
	caller     Caller
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClassifier creates a classifier. custodians holds lower-cased token
// addresses of known institutional custodians.
func NewClassifier(custodians map[string]bool, reader CodeReader, caller Caller, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		custodians: custodians,
		reader:     reader,
		caller:     caller,
		timeout:    DefaultCallTimeout,
		logger:     logger,
	}
}

// WithTimeout overrides the per-call RPC timeout.
func (c *Classifier) WithTimeout(d time.Duration) *Classifier {
	c.timeout = d
	return c
}

// ResolveOwner attempts to read the contract's owner address. When the
// interface description exposes a zero-argument owner()/getOwner()
// accessor it is called by its computed selector; otherwise a raw call to
// the standard owner() selector is issued. The last 20 bytes of a
// >=32-byte result are the address; an all-zero result means no owner.
//
// Resolution failure is never fatal: an empty return value means "no
// owner resolved" and the classifier proceeds with that.
func (c *Classifier) ResolveOwner(ctx context.Context, tokenAddr string, iface []capability.ABIEntry) string {
	// Method 1: the verified interface names an owner accessor.
	for _, item := range iface {
		if item.Type != "function" || len(item.Inputs) != 0 {
			continue
		}
		name := strings.ToLower(item.Name)
		if name != "owner" && name != "getowner" {
			continue
		}
		if owner := c.rawOwnerCall(ctx, tokenAddr, selectorFor(item.Name)); owner != "" {
			return owner
		}
		break
	}

	// Method 2: raw call to the standard owner() selector.
	return c.rawOwnerCall(ctx, tokenAddr, []byte(ownerSelector))
}

// rawOwnerCall issues a read-only call and decodes an address result.
func (c *Classifier) rawOwnerCall(ctx context.Context, tokenAddr string, data []byte) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.caller.CallContract(ctx, tokenAddr, data)
	if err != nil {
		c.logger.Debug("owner call failed", "token", tokenAddr, "error", err)
		return ""
	}
	if len(raw) < 32 {
		return ""
	}
	owner := "0x" + hex.EncodeToString(raw[len(raw)-20:])
	if owner == ZeroAddress {
		return ""
	}
	return owner
}

// Classify runs the full classification for a token. owner is the
// already-resolved owner address (empty when resolution failed) and
// bytecode is the token's own deployed code as lower-case hex, used for
// the dual-signal renouncement check.
//
// Precedence: custodian allowlist, no owner, zero/burn owner, code shape
// at the owner address. The renouncement override runs last and wins
// regardless: bytecode evidence and storage-read evidence of renouncement
// corroborate each other.
func (c *Classifier) Classify(ctx context.Context, tokenAddr, owner, bytecode string) Controller {
	ctrl := c.classify(ctx, strings.ToLower(tokenAddr), strings.ToLower(owner))

	if OwnershipRenounced(owner, bytecode) {
		return Controller{Type: ControllerRenounced, Owner: ctrl.Owner, Confidence: 0.9}
	}
	return ctrl
}

func (c *Classifier) classify(ctx context.Context, tokenAddr, owner string) Controller {
	// The token itself being a known custodian short-circuits everything:
	// WBTC having mint() is custody, not rug risk.
	if c.custodians[tokenAddr] {
		return Controller{Type: ControllerKnownEntity, Owner: owner, Confidence: 0.95}
	}

	if owner == "" {
		return Controller{Type: ControllerUnknown, Confidence: 0.0}
	}

	if IsRenouncedOwner(owner) {
		return Controller{Type: ControllerRenounced, Owner: owner, Confidence: 1.0}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	code, err := c.reader.CodeAt(ctx, owner)
	if err != nil {
		c.logger.Warn("owner code inspection failed", "owner", owner, "error", err)
		return Controller{Type: ControllerUnknown, Owner: owner, Confidence: 0.0}
	}

	if len(code) <= 1 {
		// No meaningful code at the owner address: externally-owned account.
		return Controller{Type: ControllerSingleEOA, Owner: owner, Confidence: 0.95}
	}

	codeHex := hex.EncodeToString(code)
	hasDelegatecall := strings.Contains(codeHex, "f4")

	switch {
	case hasDelegatecall && len(code) < 200:
		// Gnosis Safe proxy signature: tiny forwarder with DELEGATECALL.
		return Controller{Type: ControllerMultisig, Owner: owner, Confidence: 0.75}
	case hasDelegatecall:
		return Controller{Type: ControllerMultisig, Owner: owner, Confidence: 0.65}
	default:
		// Substantial code, no delegatecall: likely timelock or governor.
		return Controller{Type: ControllerDAOTimelock, Owner: owner, Confidence: 0.60}
	}
}

// OwnershipRenounced reports whether renouncement is established by either
// signal: a resolved zero/burn owner, or no resolvable owner while the
// renounceOwnership() selector is present in the token's own bytecode.
func OwnershipRenounced(owner, bytecode string) bool {
	if owner != "" {
		return IsRenouncedOwner(strings.ToLower(owner))
	}
	return strings.Contains(strings.ToLower(bytecode), capability.RenounceOwnershipSelector)
}

// selectorFor computes the 4-byte call data for a zero-argument accessor.
func selectorFor(name string) []byte {
	return capability.SelectorBytes(name + "()")
}
