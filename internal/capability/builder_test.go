package capability

import (
	"errors"
	"testing"
)

func TestBuildNoBytecode(t *testing.T) {
	b := NewBuilder(nil)

	for _, code := range []string{"", "0x"} {
		if _, err := b.Build(code, nil); !errors.Is(err, ErrNotAContract) {
			t.Errorf("Build(%q) error = %v, want ErrNotAContract", code, err)
		}
	}
}

func TestBuildFromBytecode(t *testing.T) {
	b := NewBuilder(nil)

	// Padding around the mint(address,uint256) and pause() selectors.
	code := "0x6080604052" + "40c10f19" + "00ff" + "8456cb59" + "00"

	caps, err := b.Build(code, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(caps) != 2 {
		t.Fatalf("got %d capabilities, want 2: %+v", len(caps), caps)
	}

	if caps[0].Name != NameMint || caps[0].Selector != "0x40c10f19" || caps[0].Source != SourceBytecode {
		t.Errorf("unexpected first capability: %+v", caps[0])
	}
	if caps[0].RiskLevel != RiskCritical {
		t.Errorf("mint risk level = %s, want critical", caps[0].RiskLevel)
	}
	if caps[1].Name != NamePause || caps[1].RiskLevel != RiskHigh {
		t.Errorf("unexpected second capability: %+v", caps[1])
	}
}

func TestBuildSkipsStandardTransfer(t *testing.T) {
	b := NewBuilder(nil)

	caps, err := b.Build("0x00a9059cbb00", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("transfer selector should not produce capabilities, got %+v", caps)
	}
}

func TestBuildFromABI(t *testing.T) {
	b := NewBuilder(nil)

	iface := []ABIEntry{
		{Type: "function", Name: "setBuyTax", Inputs: []ABIInput{{Type: "uint256"}}},
		{Type: "function", Name: "transferOwnership", Inputs: []ABIInput{{Type: "address"}}},
		{Type: "event", Name: "Minted"}, // non-functions are ignored
	}

	caps, err := b.Build("0x6080", iface)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(caps) != 2 {
		t.Fatalf("got %d capabilities, want 2: %+v", len(caps), caps)
	}

	if caps[0].Name != NameSetFee || caps[0].Source != SourceABI {
		t.Errorf("unexpected setFee capability: %+v", caps[0])
	}
	// keccak256("transferOwnership(address)")[:4] is the well-known selector.
	if caps[1].Name != NameTransferOwnership || caps[1].Selector != "0xf2fde38b" {
		t.Errorf("unexpected transferOwnership capability: %+v", caps[1])
	}
}

func TestBuildDedupAcrossPasses(t *testing.T) {
	b := NewBuilder(nil)

	// mint appears in bytecode AND as two ABI functions; only the
	// bytecode hit survives.
	iface := []ABIEntry{
		{Type: "function", Name: "mint", Inputs: []ABIInput{{Type: "uint256"}}},
		{Type: "function", Name: "mintTo", Inputs: []ABIInput{{Type: "address"}, {Type: "uint256"}}},
	}

	caps, err := b.Build("0x0040c10f1900", iface)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(caps) != 1 {
		t.Fatalf("got %d capabilities, want 1: %+v", len(caps), caps)
	}
	if caps[0].Source != SourceBytecode {
		t.Errorf("dedup should keep the bytecode hit, got %+v", caps[0])
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(nil)

	code := "0x40c10f19fe575a878456cb59c0246668f2fde38b715018a6"
	iface := []ABIEntry{
		{Type: "function", Name: "openTrading"},
		{Type: "function", Name: "unpause"},
	}

	first, err := b.Build(code, iface)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := b.Build(code, iface)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d capabilities, want %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d: capability %d = %+v, want %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestRiskLevelOverride(t *testing.T) {
	levels := DefaultRiskLevels()
	levels[NamePause] = RiskCritical

	b := NewBuilder(levels)
	caps, err := b.Build("0x8456cb59", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(caps) != 1 || caps[0].RiskLevel != RiskCritical {
		t.Errorf("override not applied: %+v", caps)
	}
}
