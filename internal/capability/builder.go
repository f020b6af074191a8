package capability

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// dangerousSelectors maps 4-byte function selectors (lower-case hex,
// no 0x) to canonical capability names. An empty Name marks a selector
// that is explicitly excluded: it belongs to a standard, harmless
// function that shares a table slot only to document the exclusion.
var dangerousSelectors = []struct {
	selector string
	name     Name
}{
	// Minting / supply manipulation
	{"40c10f19", NameMint}, // mint(address,uint256)
	{"a0712d68", NameMint}, // mint(uint256)
	{"4e6ec247", NameMint}, // mint(address,uint256) variant
	// Blacklisting / blocking
	{"44337ea1", NameBlacklist}, // blacklist(address)
	{"fe575a87", NameBlacklist}, // addToBlacklist(address)
	{"0ecb93c0", NameBlacklist}, // addBlacklist(address)
	// Pause / freeze trading
	{"8456cb59", NamePause},   // pause()
	{"3f4ba83a", NameUnpause}, // unpause()
	// Fee / tax manipulation
	{"c0246668", NameSetFee}, // setFee(address,bool)
	{"a9059cbb", ""},         // transfer — standard, skip
	// Trading control
	{"8a8c523c", NameSetTrading}, // setTradingEnabled / openTrading
	{"c9567bf9", NameSetTrading}, // openTrading()
	// Ownership
	{"f2fde38b", NameTransferOwnership}, // transferOwnership(address)
	{"715018a6", NameRenounceOwnership}, // renounceOwnership()
}

// abiRiskyNames maps lower-case name fragments to canonical capability
// names. Order matters: the first fragment contained in a function name
// wins, so more specific fragments sit above generic ones.
var abiRiskyNames = []struct {
	fragment string
	name     Name
}{
	{"mint", NameMint},
	{"blacklist", NameBlacklist},
	{"addtoblacklist", NameBlacklist},
	{"removeblacklist", NameBlacklist},
	{"settax", NameSetFee},
	{"setfee", NameSetFee},
	{"setfees", NameSetFee},
	{"setselltax", NameSetFee},
	{"setbuytax", NameSetFee},
	{"pause", NamePause},
	{"unpause", NameUnpause},
	{"enabletrading", NameSetTrading},
	{"opentrading", NameSetTrading},
	{"settradingenabled", NameSetTrading},
	{"transferownership", NameTransferOwnership},
	{"renounceownership", NameRenounceOwnership},
}

// RenounceOwnershipSelector is the 4-byte selector for renounceOwnership().
// The authority classifier checks it against raw bytecode as part of the
// dual-signal renouncement detection.
const RenounceOwnershipSelector = "715018a6"

// Builder detects dangerous capabilities from bytecode and ABI.
type Builder struct {
	levels RiskLevelTable
}

// NewBuilder creates a capability builder using the given risk level table.
// A nil table falls back to the built-in defaults.
func NewBuilder(levels RiskLevelTable) *Builder {
	if levels == nil {
		levels = DefaultRiskLevels()
	}
	return &Builder{levels: levels}
}

// Build scans bytecode and the optional interface description and returns
// the deduplicated capability list. Bytecode must be the deployed code as
// a lower-case hex string (0x prefix optional); iface may be nil when the
// contract is unverified.
//
// Returns ErrNotAContract when there is no bytecode. That is the only
// failure mode: an unparseable ABI entry simply contributes nothing.
func (b *Builder) Build(bytecode string, iface []ABIEntry) ([]Capability, error) {
	code := strings.ToLower(strings.TrimPrefix(bytecode, "0x"))
	if code == "" {
		return nil, ErrNotAContract
	}

	seen := make(map[Name]bool)
	var caps []Capability

	// Pass 1 — bytecode selectors. First match per canonical name wins.
	for _, entry := range dangerousSelectors {
		if entry.name == "" {
			continue
		}
		if seen[entry.name] {
			continue
		}
		if strings.Contains(code, entry.selector) {
			seen[entry.name] = true
			caps = append(caps, Capability{
				Name:      entry.name,
				Selector:  "0x" + entry.selector,
				Source:    SourceBytecode,
				RiskLevel: b.levels.levelFor(entry.name),
			})
		}
	}

	// Pass 2 — ABI names. More accurate names for what pass 1 missed.
	for _, item := range iface {
		if item.Type != "function" || item.Name == "" {
			continue
		}
		fname := strings.ToLower(item.Name)
		for _, entry := range abiRiskyNames {
			if !strings.Contains(fname, entry.fragment) || seen[entry.name] {
				continue
			}
			seen[entry.name] = true
			caps = append(caps, Capability{
				Name:      entry.name,
				Selector:  abiSelector(item),
				Source:    SourceABI,
				RiskLevel: b.levels.levelFor(entry.name),
			})
			break
		}
	}

	return caps, nil
}

// abiSelector computes the 0x-prefixed 4-byte selector for an ABI entry
// from its canonical signature name(type1,type2,...).
func abiSelector(item ABIEntry) string {
	types := make([]string, len(item.Inputs))
	for i, in := range item.Inputs {
		types[i] = in.Type
	}
	sig := item.Name + "(" + strings.Join(types, ",") + ")"
	return "0x" + hex.EncodeToString(SelectorBytes(sig))
}

// SelectorBytes returns the 4-byte function selector for a canonical
// signature like "owner()" or "mint(address,uint256)".
func SelectorBytes(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}
