package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/mbd888/rugscan/internal/authority"
	"github.com/mbd888/rugscan/internal/capability"
	"github.com/mbd888/rugscan/internal/holders"
	"github.com/mbd888/rugscan/internal/liquidity"
	"github.com/mbd888/rugscan/internal/scoring"
	"github.com/mbd888/rugscan/internal/traces"
)

// The short-bytecode proxy fallback threshold, in hex characters of
// unprefixed deployed code. Minimal forwarder proxies sit well below it.
const shortProxyHexLen = 600

// ChainReader is the per-chain RPC surface the service needs.
type ChainReader interface {
	BytecodeAt(ctx context.Context, address string) (string, error)
	CodeAt(ctx context.Context, address string) ([]byte, error)
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
	ImplementationAt(ctx context.Context, address string) (string, error)
}

// ExplorerSource supplies verification status and verified ABIs.
type ExplorerSource interface {
	Supports(chain string) bool
	IsVerified(ctx context.Context, chain, address string) (bool, error)
	ABI(ctx context.Context, chain, address string) ([]capability.ABIEntry, error)
}

// LiquiditySource supplies market structure snapshots.
type LiquiditySource interface {
	Fetch(ctx context.Context, chain, address string) (liquidity.Snapshot, error)
}

// HolderSource supplies holder distribution snapshots.
type HolderSource interface {
	Analyze(ctx context.Context, chain, address string) holders.Snapshot
}

// Service runs the analysis pipeline and persists results.
type Service struct {
	readers    map[string]ChainReader
	explorer   ExplorerSource
	liquidity  LiquiditySource
	holders    HolderSource
	builder    *capability.Builder
	custodians map[string]bool
	store      Store
	cache      *Cache
	logger     *slog.Logger
}

// ServiceConfig wires the service's collaborators.
type ServiceConfig struct {
	Readers    map[string]ChainReader
	Explorer   ExplorerSource
	Liquidity  LiquiditySource
	Holders    HolderSource
	Custodians map[string]bool
	RiskLevels capability.RiskLevelTable
	Store      Store
	Cache      *Cache
	Logger     *slog.Logger
}

// NewService creates the analysis service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	custodians := cfg.Custodians
	if custodians == nil {
		custodians = map[string]bool{}
	}
	return &Service{
		readers:    cfg.Readers,
		explorer:   cfg.Explorer,
		liquidity:  cfg.Liquidity,
		holders:    cfg.Holders,
		builder:    capability.NewBuilder(cfg.RiskLevels),
		custodians: custodians,
		store:      cfg.Store,
		cache:      cfg.Cache,
		logger:     logger,
	}
}

// Chains returns the chain identifiers the service can analyze.
func (s *Service) Chains() []string {
	names := make([]string, 0, len(s.readers))
	for name := range s.readers {
		names = append(names, name)
	}
	return names
}

// Analyze runs the full pipeline for one token and persists the report.
// The only fatal inputs are an unsupported chain, an unreachable RPC,
// and an address with no bytecode; every other data source degrades
// into uncertainty rather than failure.
func (s *Service) Analyze(ctx context.Context, chainName, address string) (*Report, error) {
	chainName = strings.ToLower(chainName)
	address = strings.ToLower(address)

	ctx, span := traces.StartSpan(ctx, "analysis.Analyze",
		traces.Chain(chainName), traces.TokenAddr(address))
	defer span.End()

	reader, ok := s.readers[chainName]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %q", chainName)
	}

	bytecode, err := reader.BytecodeAt(ctx, address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bytecode fetch failed")
		return nil, fmt.Errorf("fetch bytecode: %w", err)
	}
	code := strings.ToLower(strings.TrimPrefix(bytecode, "0x"))
	if code == "" {
		return nil, capability.ErrNotAContract
	}

	// Verification and ABI, when an explorer is configured for the chain.
	verified := false
	var iface []capability.ABIEntry
	if s.explorer != nil && s.explorer.Supports(chainName) {
		v, err := s.explorer.IsVerified(ctx, chainName, address)
		if err != nil {
			s.logger.Debug("verification check failed", "chain", chainName, "address", address, "error", err)
		}
		verified = err == nil && v
		if verified {
			if ab, err := s.explorer.ABI(ctx, chainName, address); err == nil {
				iface = ab
			}
		}
	}

	caps, err := s.builder.Build(bytecode, iface)
	if err != nil {
		return nil, err
	}

	isProxy := s.detectProxy(ctx, reader, address, code)

	classifier := authority.NewClassifier(s.custodians, reader, reader, s.logger)
	owner := classifier.ResolveOwner(ctx, address, iface)
	ctrl := classifier.Classify(ctx, address, owner, code)
	renounced := authority.OwnershipRenounced(owner, code)

	liq, err := s.liquidity.Fetch(ctx, chainName, address)
	if err != nil {
		s.logger.Warn("liquidity fetch failed", "chain", chainName, "address", address, "error", err)
		liq = liquidity.Empty()
	}
	hold := s.holders.Analyze(ctx, chainName, address)

	result := scoring.Score(
		scoring.ContractInput{
			Capabilities:       caps,
			Controller:         ctrl,
			Verified:           verified,
			IsProxy:            isProxy,
			OwnershipRenounced: renounced,
		},
		scoring.LiquidityInput{
			LiquidityUSD:      liq.LiquidityUSD,
			TotalLiquidityUSD: liq.TotalLiquidityUSD,
			FDVUSD:            liq.FDVUSD,
			Volume24hUSD:      liq.Volume24hUSD,
			PairCount:         liq.PairCount,
			PairURL:           liq.PairURL,
			TokenAgeDays:      liq.TokenAgeDays,
		},
		scoring.HolderInput{
			Unavailable: hold.Unavailable,
			Top1Pct:     hold.Top1Pct,
			Top10Pct:    hold.Top10Pct,
		},
	)

	now := time.Now().UTC()
	report := &Report{
		Chain:      chainName,
		Address:    address,
		RiskScore:  result.RiskScore,
		RiskTier:   result.Tier,
		MRR:        result.MRR,
		SCR:        result.SCR,
		MFR:        result.MFR,
		UF:         result.Uncertainty,
		Confidence: result.Confidence,
		Signals:    result.Signals,
		Contract: ContractAnalysis{
			IsProxy:            isProxy,
			Verified:           verified,
			OwnershipRenounced: renounced,
			Capabilities:       attribute(caps, ctrl),
			Controller:         ctrl,
			OwnerAddress:       owner,
		},
		Liquidity:      liq,
		Holders:        hold,
		TokenName:      liq.TokenName,
		TokenSymbol:    liq.TokenSymbol,
		PriceUSD:       liq.PriceUSD,
		PriceChange24h: liq.PriceChange24h,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	span.SetAttributes(traces.RiskScore(report.RiskScore), traces.RiskTier(string(report.RiskTier)))

	if s.store != nil {
		if err := s.store.Upsert(ctx, report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist failed")
			return nil, fmt.Errorf("persist report: %w", err)
		}
	}
	if s.cache != nil {
		s.cache.Set(chainName, address, report)
	}

	s.logger.Info("analysis complete",
		"chain", chainName,
		"address", address,
		"risk_score", report.RiskScore,
		"tier", report.RiskTier,
		"confidence", report.Confidence)

	return report, nil
}

// CachedReport returns a fresh report without running the pipeline: the
// in-process cache first, then a recent-enough stored report. maxAge
// zero disables the store freshness path.
func (s *Service) CachedReport(ctx context.Context, chainName, address string, maxAge time.Duration) (*Report, bool) {
	chainName = strings.ToLower(chainName)
	address = strings.ToLower(address)

	if s.cache != nil {
		if r, ok := s.cache.Get(chainName, address); ok {
			return r, true
		}
	}
	if s.store == nil || maxAge <= 0 {
		return nil, false
	}
	r, err := s.store.Get(ctx, chainName, address)
	if err != nil {
		return nil, false
	}
	if time.Since(r.UpdatedAt) > maxAge {
		return nil, false
	}
	if s.cache != nil {
		s.cache.Set(chainName, address, r)
	}
	return r, true
}

// StoredReport returns the persisted report for a token regardless of age.
func (s *Service) StoredReport(ctx context.Context, chainName, address string) (*Report, error) {
	if s.store == nil {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, strings.ToLower(chainName), strings.ToLower(address))
}

// RecentReports returns up to limit reports older than the given page
// position, most recently updated first. A zero updatedAt starts from
// the newest report.
func (s *Service) RecentReports(ctx context.Context, updatedAt time.Time, key string, limit int) ([]*Report, error) {
	if s.store == nil {
		return []*Report{}, nil
	}
	return s.store.ListRecentBefore(ctx, updatedAt, key, limit)
}

// detectProxy checks the EIP-1967 implementation slot, falling back to
// the short-forwarder heuristic when the slot read fails or is unset.
func (s *Service) detectProxy(ctx context.Context, reader ChainReader, address, code string) bool {
	impl, err := reader.ImplementationAt(ctx, address)
	if err != nil {
		s.logger.Debug("implementation slot read failed", "address", address, "error", err)
	} else if impl != "" {
		return true
	}
	return len(code) < shortProxyHexLen && strings.Contains(code, "f4")
}

func attribute(caps []capability.Capability, ctrl authority.Controller) []AttributedCapability {
	out := make([]AttributedCapability, len(caps))
	for i, c := range caps {
		out[i] = AttributedCapability{
			Capability:           c,
			ControllerType:       ctrl.Type,
			ControllerAddress:    ctrl.Owner,
			ControllerConfidence: ctrl.Confidence,
		}
	}
	return out
}
