package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mbd888/rugscan/internal/authority"
)

// Score fuses the analyzer outputs into the final verdict. Pure in-memory
// computation, deterministic for identical inputs.
//
// The pipeline runs in a fixed order: capability x authority scoring,
// liquidity attack surface, holder concentration, the age-based stability
// floor, the multiplicative market legitimacy dampener, uncertainty
// accumulation, and the final clamp. The floor applies before the
// dampener; reordering them changes results for aged high-liquidity
// tokens.
func Score(contract ContractInput, liquidity LiquidityInput, holders HolderInput) Result {
	var (
		mrr, scr, mfr int
		uf            float64
		signals       []Signal
	)

	cMRR, cSCR, cSigs := scoreCapabilities(contract)
	mrr += cMRR
	scr += cSCR
	signals = append(signals, cSigs...)

	// Upgradeability concentrates power but is not itself a rug vector.
	if contract.IsProxy {
		scr += 5
		signals = append(signals, Signal{
			Title:         "Upgradeable Proxy Contract",
			Severity:      SeverityMedium,
			Description:   "Contract is upgradeable via proxy pattern. This is a centralization indicator, not direct rug risk.",
			EvidenceLinks: []string{},
		})
	}

	lMRR, lMFR, lSigs := scoreLiquidity(liquidity)
	mrr += lMRR
	mfr += lMFR
	signals = append(signals, lSigs...)

	hMFR, hUF, hSigs := scoreHolders(holders)
	mfr += hMFR
	uf += hUF
	signals = append(signals, hSigs...)

	// Sustained age argues against a rug in preparation. Applied as a
	// floor adjustment, never below zero.
	stability := 0
	if liquidity.TokenAgeDays != nil {
		age := *liquidity.TokenAgeDays
		switch {
		case age < 1:
			stability = 0
		case age < 7:
			stability = -5
		case age < 30:
			stability = -15
		case age < 365:
			stability = -25
		default:
			stability = -30
		}
		if stability < 0 {
			signals = append(signals, Signal{
				Title:         "Historical Stability",
				Severity:      SeverityInfo,
				Description:   fmt.Sprintf("Token has been active for ~%.0f days. Time reduces rug probability.", age),
				EvidenceLinks: []string{},
			})
		}
	} else {
		uf += 0.05
	}
	mrr += stability
	if mrr < 0 {
		mrr = 0
	}

	// Market legitimacy dampener. Multiplicative so strong market
	// structure scales risk down without ever erasing hard evidence.
	var totalLiq float64
	if liquidity.TotalLiquidityUSD != nil && *liquidity.TotalLiquidityUSD != 0 {
		totalLiq = *liquidity.TotalLiquidityUSD
	} else if liquidity.LiquidityUSD != nil {
		totalLiq = *liquidity.LiquidityUSD
	}
	if totalLiq > 50_000_000 || (totalLiq > 10_000_000 && liquidity.PairCount >= 3) {
		mrr = int(float64(mrr) * 0.6)
		signals = append(signals, Signal{
			Title:         "Market Legitimacy Indicators",
			Severity:      SeverityInfo,
			Description:   fmt.Sprintf("Token has strong market presence (%s total liquidity across %d pools). MRR dampened.", formatUSD(totalLiq), liquidity.PairCount),
			EvidenceLinks: []string{},
		})
	}

	// Uncertainty accumulation.
	if !contract.Verified {
		uf += 0.25
		signals = append(signals, Signal{
			Title:         "Unverified Source Code",
			Severity:      SeverityMedium,
			Description:   "Contract source code is not verified. Analysis based on bytecode heuristics only.",
			EvidenceLinks: []string{},
		})
	}
	if liquidity.Volume24hUSD == nil || *liquidity.Volume24hUSD < 1_000 {
		uf += 0.15
	}
	if liquidity.TokenAgeDays != nil && *liquidity.TokenAgeDays < 1 {
		uf += 0.10
	}
	if uf > 1.0 {
		uf = 1.0
	}

	mrr = clamp(mrr)
	scr = clamp(scr)
	mfr = clamp(mfr)

	riskScore := clamp(mrr + int(float64(mfr)*0.6))
	confidence := math.Round((1.0-uf)*100) / 100

	if riskScore < tierMediumFloor && mrr < 15 {
		signals = append(signals, Signal{
			Title:         "Low Rug Risk Profile",
			Severity:      SeverityInfo,
			Description:   "Token shows low probability of malicious behavior based on available data.",
			EvidenceLinks: []string{},
		})
	}

	return Result{
		RiskScore:   riskScore,
		Tier:        tierFor(riskScore),
		MRR:         mrr,
		SCR:         scr,
		MFR:         mfr,
		Uncertainty: uf,
		Confidence:  confidence,
		Signals:     signals,
	}
}

// scoreCapabilities prices each capability against the controller that
// can invoke it. A capability alone never scores; the same mint() is
// inert when renounced, custody when held by a known entity, and a
// loaded gun behind a single EOA.
func scoreCapabilities(contract ContractInput) (mrr, scr int, sigs []Signal) {
	ct := contract.Controller.Type
	if ct == "" {
		ct = authority.ControllerUnknown
	}

	// If the controller is a single EOA, certainty about who holds the
	// keys is higher, so individual capability bumps are slightly lower
	// than the unknown-controller case.
	eoaOr := func(eoa, other int) int {
		if ct == authority.ControllerSingleEOA {
			return eoa
		}
		return other
	}

	var criticalCaps, centralCaps, safeCaps []string

	for _, c := range contract.Capabilities {
		name := strings.ToLower(string(c.Name))
		if name == "renounceownership" {
			// Having a renounce function is a positive indicator.
			continue
		}

		switch ct {
		case authority.ControllerRenounced:
			safeCaps = append(safeCaps, name)
			continue
		case authority.ControllerMultisig, authority.ControllerDAOTimelock:
			switch name {
			case "mint", "blacklist":
				scr += 5
				centralCaps = append(centralCaps, name)
			case "pause", "unpause", "setfee", "settrading":
				scr += 3
				centralCaps = append(centralCaps, name)
			}
			continue
		case authority.ControllerKnownEntity:
			switch name {
			case "mint", "blacklist":
				scr += 8
			case "pause", "unpause", "setfee", "settrading":
				scr += 4
			}
			centralCaps = append(centralCaps, name)
			continue
		}

		// Single EOA or unknown controller: live rug risk.
		switch name {
		case "mint":
			if ct == authority.ControllerUnknown {
				mrr += 30
			} else {
				mrr += 25
			}
			criticalCaps = append(criticalCaps, "mint")
		case "blacklist":
			mrr += eoaOr(20, 25)
			criticalCaps = append(criticalCaps, "blacklist")
		case "pause", "unpause":
			mrr += eoaOr(15, 20)
			criticalCaps = append(criticalCaps, "pause/unpause")
		case "setfee":
			mrr += eoaOr(20, 25)
			criticalCaps = append(criticalCaps, "fee manipulation")
		case "settrading":
			mrr += eoaOr(20, 25)
			criticalCaps = append(criticalCaps, "trading control")
		case "transferownership":
			// A transfer mechanism, not dangerous on its own.
			scr += 3
		}
	}

	if len(criticalCaps) > 0 {
		label := controllerLabel(ct)
		sigs = append(sigs, Signal{
			Title:         "Dangerous Capabilities Controlled by " + label,
			Severity:      SeverityCritical,
			Description:   fmt.Sprintf("Contract has [%s] controlled by %s. High probability of malicious use.", strings.Join(dedupe(criticalCaps), ", "), label),
			EvidenceLinks: []string{},
		})
	}
	if len(centralCaps) > 0 {
		sigs = append(sigs, Signal{
			Title:         "Centralized Control (Not Rug Risk)",
			Severity:      SeverityMedium,
			Description:   fmt.Sprintf("Capabilities [%s] exist but are controlled by multisig/timelock/custodian. Centralization risk, not immediate rug risk.", strings.Join(dedupe(centralCaps), ", ")),
			EvidenceLinks: []string{},
		})
	}
	if len(safeCaps) > 0 {
		sigs = append(sigs, Signal{
			Title:         "Renounced Capabilities",
			Severity:      SeverityInfo,
			Description:   fmt.Sprintf("Capabilities [%s] exist but ownership is renounced. No risk.", strings.Join(dedupe(safeCaps), ", ")),
			EvidenceLinks: []string{},
		})
	}
	if contract.OwnershipRenounced {
		sigs = append(sigs, Signal{
			Title:         "Ownership Renounced",
			Severity:      SeverityInfo,
			Description:   "Contract ownership has been renounced. Admin functions cannot be called.",
			EvidenceLinks: []string{},
		})
	}

	return mrr, scr, sigs
}

// scoreLiquidity prices the liquidity attack surface into MRR and MFR.
func scoreLiquidity(liq LiquidityInput) (mrr, mfr int, sigs []Signal) {
	ev := []string{}
	if liq.PairURL != "" {
		ev = []string{liq.PairURL}
	}

	liqUSD := liq.LiquidityUSD
	totalLiq := liq.TotalLiquidityUSD
	if totalLiq == nil || *totalLiq == 0 {
		totalLiq = liqUSD
	}

	switch {
	case liqUSD == nil || *liqUSD < 25_000:
		mrr += 30
		mfr += 40
		liqStr := "unknown"
		if liqUSD != nil && *liqUSD != 0 {
			liqStr = formatUSD(*liqUSD)
		}
		sigs = append(sigs, Signal{
			Title:         "Critical: Very Low Liquidity",
			Severity:      SeverityCritical,
			Description:   fmt.Sprintf("Liquidity is %s. Highly susceptible to rug pull and price manipulation.", liqStr),
			EvidenceLinks: ev,
		})
	case *liqUSD < 100_000:
		mrr += 10
		mfr += 25
		sigs = append(sigs, Signal{
			Title:         "Low Liquidity",
			Severity:      SeverityHigh,
			Description:   fmt.Sprintf("Liquidity is %s. Elevated manipulation risk.", formatUSD(*liqUSD)),
			EvidenceLinks: ev,
		})
	case *liqUSD < 500_000:
		mfr += 15
		sigs = append(sigs, Signal{
			Title:         "Moderate Liquidity",
			Severity:      SeverityMedium,
			Description:   fmt.Sprintf("Liquidity is %s. Adequate but not deep.", formatUSD(*liqUSD)),
			EvidenceLinks: ev,
		})
	}

	// Liquidity relative to fully diluted valuation.
	if liqUSD != nil && *liqUSD != 0 && liq.FDVUSD != nil && *liq.FDVUSD > 0 {
		ratio := *liqUSD / *liq.FDVUSD
		if ratio < 0.005 {
			mfr += 25
			sigs = append(sigs, Signal{
				Title:         "Extreme Liquidity/FDV Imbalance",
				Severity:      SeverityCritical,
				Description:   fmt.Sprintf("Liquidity/FDV ratio is %s. Extremely thin for the valuation.", formatPct(ratio)),
				EvidenceLinks: ev,
			})
		} else if ratio < 0.02 {
			mfr += 15
			sigs = append(sigs, Signal{
				Title:         "Low Liquidity/FDV Ratio",
				Severity:      SeverityHigh,
				Description:   fmt.Sprintf("Liquidity/FDV ratio is %s. Thin relative to valuation.", formatPct(ratio)),
				EvidenceLinks: ev,
			})
		}
	}

	// Deep liquidity spread over multiple pools is expensive to drain.
	if totalLiq != nil && *totalLiq > 10_000_000 && liq.PairCount >= 2 {
		mrr = int(float64(mrr) * 0.8)
		sigs = append(sigs, Signal{
			Title:         "Deep Multi-Pool Liquidity",
			Severity:      SeverityInfo,
			Description:   fmt.Sprintf("%s across %d pools. Significantly harder to rug.", formatUSD(*totalLiq), liq.PairCount),
			EvidenceLinks: []string{},
		})
	}

	return mrr, mfr, sigs
}

// scoreHolders prices supply concentration into MFR. Concentration is
// market fragility, not malicious intent: a whale is not an admin key.
// Missing data raises uncertainty, never risk.
func scoreHolders(h HolderInput) (mfr int, uf float64, sigs []Signal) {
	if h.Unavailable {
		uf += 0.15
		sigs = append(sigs, Signal{
			Title:         "Holder Data Unavailable",
			Severity:      SeverityInfo,
			Description:   "Holder distribution data unavailable. This increases uncertainty, not risk.",
			EvidenceLinks: []string{},
		})
		return mfr, uf, sigs
	}

	if h.Top1Pct != nil && *h.Top1Pct != 0 {
		top1 := *h.Top1Pct
		switch {
		case top1 > 50:
			mfr += 30
			sigs = append(sigs, Signal{
				Title:         "Extreme Holder Concentration",
				Severity:      SeverityCritical,
				Description:   fmt.Sprintf("Top holder controls %.1f%% of supply. Extreme market fragility.", top1),
				EvidenceLinks: []string{},
			})
		case top1 > 30:
			mfr += 20
			sigs = append(sigs, Signal{
				Title:         "High Holder Concentration",
				Severity:      SeverityHigh,
				Description:   fmt.Sprintf("Top holder controls %.1f%% of supply.", top1),
				EvidenceLinks: []string{},
			})
		case top1 > 15:
			mfr += 10
			sigs = append(sigs, Signal{
				Title:         "Moderate Holder Concentration",
				Severity:      SeverityMedium,
				Description:   fmt.Sprintf("Top holder controls %.1f%% of supply.", top1),
				EvidenceLinks: []string{},
			})
		}
	}

	if h.Top10Pct != nil {
		top10 := *h.Top10Pct
		if top10 > 80 {
			mfr += 15
			sigs = append(sigs, Signal{
				Title:         "Top 10 Concentration",
				Severity:      SeverityHigh,
				Description:   fmt.Sprintf("Top 10 holders control %.1f%% of supply.", top10),
				EvidenceLinks: []string{},
			})
		} else if top10 > 60 {
			mfr += 8
		}
	}

	return mfr, uf, sigs
}

// controllerLabel renders a controller type for signal text,
// "single_eoa" becomes "Single Eoa".
func controllerLabel(ct authority.ControllerType) string {
	words := strings.Fields(strings.ReplaceAll(string(ct), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// formatUSD renders a dollar amount with thousands separators, no cents.
func formatUSD(v float64) string {
	s := strconv.FormatInt(int64(math.Round(v)), 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return "$" + s
}

// formatPct renders a 0..1 ratio as a percentage with two decimals.
func formatPct(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
