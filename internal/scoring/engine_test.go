package scoring

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/mbd888/rugscan/internal/authority"
	"github.com/mbd888/rugscan/internal/capability"
)

func fptr(v float64) *float64 { return &v }

func signalTitles(sigs []Signal) []string {
	titles := make([]string, len(sigs))
	for i, s := range sigs {
		titles[i] = s.Title
	}
	return titles
}

func countTitle(sigs []Signal, title string) int {
	n := 0
	for _, s := range sigs {
		if s.Title == title {
			n++
		}
	}
	return n
}

// A fresh unverified token: mint behind a single EOA, thin liquidity,
// one whale holding most of the supply.
func TestScoreHighRiskNewToken(t *testing.T) {
	contract := ContractInput{
		Capabilities: []capability.Capability{
			{Name: capability.NameMint, Selector: "0x40c10f19", Source: capability.SourceBytecode, RiskLevel: capability.RiskCritical},
		},
		Controller: authority.Controller{Type: authority.ControllerSingleEOA, Confidence: 0.95},
		Verified:   false,
	}
	liquidity := LiquidityInput{
		LiquidityUSD:      fptr(10_000),
		TotalLiquidityUSD: fptr(10_000),
		FDVUSD:            fptr(1_000_000),
		Volume24hUSD:      fptr(500),
		PairCount:         1,
	}
	holders := HolderInput{Top1Pct: fptr(60), Top10Pct: fptr(85)}

	r := Score(contract, liquidity, holders)

	if r.MRR != 55 {
		t.Errorf("MRR = %d, want 55", r.MRR)
	}
	if r.MFR != 100 {
		t.Errorf("MFR = %d, want 100 (clamped)", r.MFR)
	}
	if math.Abs(r.Uncertainty-0.45) > 1e-9 {
		t.Errorf("Uncertainty = %v, want 0.45", r.Uncertainty)
	}
	if r.Confidence != 0.55 {
		t.Errorf("Confidence = %v, want 0.55", r.Confidence)
	}
	if r.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want 100 (55 + 60, clamped)", r.RiskScore)
	}
	if r.Tier != TierExtreme {
		t.Errorf("Tier = %s, want extreme", r.Tier)
	}

	wantTitles := []string{
		"Dangerous Capabilities Controlled by Single Eoa",
		"Critical: Very Low Liquidity",
		"Low Liquidity/FDV Ratio",
		"Extreme Holder Concentration",
		"Top 10 Concentration",
		"Unverified Source Code",
	}
	if got := signalTitles(r.Signals); !reflect.DeepEqual(got, wantTitles) {
		t.Errorf("signal titles = %v, want %v", got, wantTitles)
	}

	if d := r.Signals[1].Description; d != "Liquidity is $10,000. Highly susceptible to rug pull and price manipulation." {
		t.Errorf("liquidity description = %q", d)
	}
	if d := r.Signals[2].Description; d != "Liquidity/FDV ratio is 1.00%. Thin relative to valuation." {
		t.Errorf("ratio description = %q", d)
	}
}

// An old renounced token with deep multi-pool liquidity scores clean.
func TestScoreEstablishedRenouncedToken(t *testing.T) {
	contract := ContractInput{
		Controller:         authority.Controller{Type: authority.ControllerRenounced, Confidence: 0.9},
		Verified:           true,
		OwnershipRenounced: true,
	}
	liquidity := LiquidityInput{
		LiquidityUSD:      fptr(60_000_000),
		TotalLiquidityUSD: fptr(70_000_000),
		FDVUSD:            fptr(65_000_000),
		Volume24hUSD:      fptr(2_000_000),
		PairCount:         5,
		TokenAgeDays:      fptr(400),
	}
	holders := HolderInput{Top1Pct: fptr(5), Top10Pct: fptr(20)}

	r := Score(contract, liquidity, holders)

	if r.MRR != 0 || r.SCR != 0 || r.MFR != 0 {
		t.Errorf("sub-scores = %d/%d/%d, want 0/0/0", r.MRR, r.SCR, r.MFR)
	}
	if r.Uncertainty != 0 {
		t.Errorf("Uncertainty = %v, want 0", r.Uncertainty)
	}
	if r.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", r.Confidence)
	}
	if r.RiskScore != 0 || r.Tier != TierLow {
		t.Errorf("RiskScore/Tier = %d/%s, want 0/low", r.RiskScore, r.Tier)
	}
	if countTitle(r.Signals, "Low Rug Risk Profile") != 1 {
		t.Errorf("expected the low risk signal once, titles: %v", signalTitles(r.Signals))
	}
	if countTitle(r.Signals, "Ownership Renounced") != 1 {
		t.Errorf("expected the renouncement signal, titles: %v", signalTitles(r.Signals))
	}
}

// Missing holder data must move uncertainty, never fragility.
func TestScoreHolderDataUnavailable(t *testing.T) {
	contract := ContractInput{
		Controller: authority.Controller{Type: authority.ControllerRenounced, Confidence: 1.0},
		Verified:   true,
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(600_000),
		Volume24hUSD: fptr(50_000),
		TokenAgeDays: fptr(100),
		PairCount:    1,
	}

	base := Score(contract, liquidity, HolderInput{})
	missing := Score(contract, liquidity, HolderInput{Unavailable: true})

	if diff := missing.Uncertainty - base.Uncertainty; math.Abs(diff-0.15) > 1e-9 {
		t.Errorf("uncertainty delta = %v, want exactly 0.15", diff)
	}
	if missing.MFR != base.MFR {
		t.Errorf("MFR changed from %d to %d, holder stage must not touch it", base.MFR, missing.MFR)
	}
	if countTitle(missing.Signals, "Holder Data Unavailable") != 1 {
		t.Errorf("expected the unavailable signal exactly once, titles: %v", signalTitles(missing.Signals))
	}
}

func TestSafeControllersNeverRaiseMRR(t *testing.T) {
	allCaps := []capability.Capability{
		{Name: capability.NameMint},
		{Name: capability.NameBlacklist},
		{Name: capability.NamePause},
		{Name: capability.NameUnpause},
		{Name: capability.NameSetFee},
		{Name: capability.NameSetTrading},
		{Name: capability.NameTransferOwnership},
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(600_000),
		Volume24hUSD: fptr(50_000),
		TokenAgeDays: fptr(100),
	}

	for _, ct := range []authority.ControllerType{authority.ControllerRenounced, authority.ControllerKnownEntity} {
		contract := ContractInput{
			Capabilities: allCaps,
			Controller:   authority.Controller{Type: ct, Confidence: 0.95},
			Verified:     true,
		}
		r := Score(contract, liquidity, HolderInput{})
		if r.MRR != 0 {
			t.Errorf("controller %s: MRR = %d, want 0", ct, r.MRR)
		}
	}

	// The same capabilities behind a single EOA do score.
	contract := ContractInput{
		Capabilities: allCaps,
		Controller:   authority.Controller{Type: authority.ControllerSingleEOA, Confidence: 0.95},
		Verified:     true,
	}
	if r := Score(contract, liquidity, HolderInput{}); r.MRR == 0 {
		t.Error("single EOA controller should produce nonzero MRR")
	}
}

func TestCentralizedControllersRaiseSCROnly(t *testing.T) {
	contract := ContractInput{
		Capabilities: []capability.Capability{
			{Name: capability.NameMint},
			{Name: capability.NamePause},
		},
		Controller: authority.Controller{Type: authority.ControllerMultisig, Confidence: 0.75},
		Verified:   true,
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(600_000),
		Volume24hUSD: fptr(50_000),
		TokenAgeDays: fptr(100),
	}

	r := Score(contract, liquidity, HolderInput{})
	if r.MRR != 0 {
		t.Errorf("MRR = %d, want 0 for multisig control", r.MRR)
	}
	if r.SCR != 8 {
		t.Errorf("SCR = %d, want 8 (mint 5 + pause 3)", r.SCR)
	}
	if countTitle(r.Signals, "Centralized Control (Not Rug Risk)") != 1 {
		t.Errorf("expected the centralization signal, titles: %v", signalTitles(r.Signals))
	}
}

func TestProxyAddsCentralizationOnly(t *testing.T) {
	contract := ContractInput{
		Controller: authority.Controller{Type: authority.ControllerRenounced, Confidence: 1.0},
		Verified:   true,
		IsProxy:    true,
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(600_000),
		Volume24hUSD: fptr(50_000),
		TokenAgeDays: fptr(100),
	}

	r := Score(contract, liquidity, HolderInput{})
	if r.SCR != 5 || r.MRR != 0 {
		t.Errorf("SCR/MRR = %d/%d, want 5/0", r.SCR, r.MRR)
	}
	if countTitle(r.Signals, "Upgradeable Proxy Contract") != 1 {
		t.Errorf("expected the proxy signal, titles: %v", signalTitles(r.Signals))
	}
}

// The stability floor applies before the legitimacy dampener. With mint
// and pause behind a single EOA (40), age 10 days (-15), and >$50M
// liquidity (x0.6): (40-15)*0.6 = 15. Dampening first would give 9.
func TestStabilityFloorBeforeLegitimacyDampener(t *testing.T) {
	contract := ContractInput{
		Capabilities: []capability.Capability{
			{Name: capability.NameMint},
			{Name: capability.NamePause},
		},
		Controller: authority.Controller{Type: authority.ControllerSingleEOA, Confidence: 0.95},
		Verified:   true,
	}
	liquidity := LiquidityInput{
		LiquidityUSD:      fptr(60_000_000),
		TotalLiquidityUSD: fptr(60_000_000),
		Volume24hUSD:      fptr(100_000),
		PairCount:         5,
		TokenAgeDays:      fptr(10),
	}

	r := Score(contract, liquidity, HolderInput{})
	if r.MRR != 15 {
		t.Errorf("MRR = %d, want 15", r.MRR)
	}
	if r.RiskScore != 15 || r.Tier != TierLow {
		t.Errorf("RiskScore/Tier = %d/%s, want 15/low", r.RiskScore, r.Tier)
	}
	// Score is below 35 but MRR is not below 15, so no positive signal.
	if countTitle(r.Signals, "Low Rug Risk Profile") != 0 {
		t.Errorf("unexpected low risk signal, titles: %v", signalTitles(r.Signals))
	}
}

func TestScoreDeterministic(t *testing.T) {
	contract := ContractInput{
		Capabilities: []capability.Capability{
			{Name: capability.NameMint},
			{Name: capability.NameBlacklist},
			{Name: capability.NameSetFee},
		},
		Controller: authority.Controller{Type: authority.ControllerUnknown},
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(40_000),
		FDVUSD:       fptr(90_000_000),
		PairCount:    2,
		TokenAgeDays: fptr(3),
	}
	holders := HolderInput{Top1Pct: fptr(35), Top10Pct: fptr(70)}

	first := Score(contract, liquidity, holders)
	for i := 0; i < 5; i++ {
		if again := Score(contract, liquidity, holders); !reflect.DeepEqual(again, first) {
			t.Fatalf("run %d differs:\n%+v\nwant:\n%+v", i, again, first)
		}
	}
}

func TestScoreBoundsClamped(t *testing.T) {
	contract := ContractInput{
		Capabilities: []capability.Capability{
			{Name: capability.NameMint},
			{Name: capability.NameBlacklist},
			{Name: capability.NamePause},
			{Name: capability.NameUnpause},
			{Name: capability.NameSetFee},
			{Name: capability.NameSetTrading},
		},
		Controller: authority.Controller{Type: authority.ControllerUnknown},
		Verified:   false,
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(100),
		FDVUSD:       fptr(500_000_000),
		TokenAgeDays: fptr(0.2),
	}
	holders := HolderInput{Top1Pct: fptr(90), Top10Pct: fptr(99)}

	r := Score(contract, liquidity, holders)
	for name, v := range map[string]int{"MRR": r.MRR, "SCR": r.SCR, "MFR": r.MFR, "RiskScore": r.RiskScore} {
		if v < 0 || v > 100 {
			t.Errorf("%s = %d, out of [0,100]", name, v)
		}
	}
	if r.Uncertainty < 0 || r.Uncertainty > 1 {
		t.Errorf("Uncertainty = %v, out of [0,1]", r.Uncertainty)
	}
	if want := math.Round((1-r.Uncertainty)*100) / 100; r.Confidence != want {
		t.Errorf("Confidence = %v, want %v", r.Confidence, want)
	}
	if r.Tier != TierExtreme {
		t.Errorf("Tier = %s, want extreme", r.Tier)
	}
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  Tier
	}{
		{0, TierLow}, {34, TierLow},
		{35, TierMedium}, {59, TierMedium},
		{60, TierHigh}, {79, TierHigh},
		{80, TierExtreme}, {100, TierExtreme},
	}
	prev := TierLow
	rank := map[Tier]int{TierLow: 0, TierMedium: 1, TierHigh: 2, TierExtreme: 3}
	for _, tc := range cases {
		got := tierFor(tc.score)
		if got != tc.want {
			t.Errorf("tierFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
		if rank[got] < rank[prev] {
			t.Errorf("tier not monotone at score %d", tc.score)
		}
		prev = got
	}
}

func TestSignalLabelsDedupe(t *testing.T) {
	// Two blacklist capabilities from different selectors must name
	// blacklist once in the signal text.
	contract := ContractInput{
		Capabilities: []capability.Capability{
			{Name: capability.NameBlacklist, Selector: "0x44337ea1"},
			{Name: capability.NameBlacklist, Selector: "0xfe575a87"},
		},
		Controller: authority.Controller{Type: authority.ControllerSingleEOA},
		Verified:   true,
	}
	liquidity := LiquidityInput{
		LiquidityUSD: fptr(600_000),
		Volume24hUSD: fptr(50_000),
		TokenAgeDays: fptr(100),
	}

	r := Score(contract, liquidity, HolderInput{})
	for _, s := range r.Signals {
		if strings.HasPrefix(s.Title, "Dangerous Capabilities") {
			if strings.Count(s.Description, "blacklist") != 1 {
				t.Errorf("description should name blacklist once: %q", s.Description)
			}
			return
		}
	}
	t.Fatalf("dangerous capabilities signal missing, titles: %v", signalTitles(r.Signals))
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0"},
		{999, "$999"},
		{10_000, "$10,000"},
		{1_234_567, "$1,234,567"},
		{70_000_000, "$70,000,000"},
	}
	for _, tc := range cases {
		if got := formatUSD(tc.in); got != tc.want {
			t.Errorf("formatUSD(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
