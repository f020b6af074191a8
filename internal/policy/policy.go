// Package policy loads the static analysis configuration: the
// known-custodian allowlist and the capability risk-level table. Both
// are data, not code, and can be versioned in YAML files independent of
// releases.
package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mbd888/rugscan/internal/capability"
)

// Custodian is one allowlisted token contract. Tokens on this list are
// institutional custody products whose admin functions are custody
// controls, not rug vectors.
type Custodian struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name,omitempty"`
}

type custodianFile struct {
	Custodians []Custodian `yaml:"custodians"`
}

type riskLevelFile struct {
	RiskLevels map[string]string `yaml:"riskLevels"`
}

// DefaultCustodians returns the built-in allowlist of major custodial
// tokens on Ethereum mainnet.
func DefaultCustodians() map[string]bool {
	return map[string]bool{
		"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599": true, // WBTC
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": true, // USDC
		"0xdac17f958d2ee523a2206206994597c13d831ec7": true, // USDT
		"0x6b175474e89094c44da98b954eedeac495271d0f": true, // DAI
		"0x4fabb145d64652a948d72533023f6e7a623c7c53": true, // BUSD
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": true, // WETH
		"0xae7ab96520de3a18e5e111b5eaab095312d7fe84": true, // stETH
	}
}

// LoadCustodians reads a custodian allowlist from a YAML file. An empty
// path returns the built-in defaults. Addresses are lower-cased.
func LoadCustodians(path string) (map[string]bool, error) {
	if path == "" {
		return DefaultCustodians(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read custodians file: %w", err)
	}

	var file custodianFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse custodians file: %w", err)
	}

	custodians := make(map[string]bool, len(file.Custodians))
	for _, c := range file.Custodians {
		addr := strings.ToLower(strings.TrimSpace(c.Address))
		if addr == "" {
			return nil, fmt.Errorf("custodian %q has no address", c.Name)
		}
		custodians[addr] = true
	}
	return custodians, nil
}

// LoadRiskLevels reads capability risk-level overrides from a YAML file.
// An empty path returns the built-in defaults. Entries merge over the
// defaults, so a file only needs to list the levels it changes.
func LoadRiskLevels(path string) (capability.RiskLevelTable, error) {
	table := capability.DefaultRiskLevels()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk levels file: %w", err)
	}

	var file riskLevelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse risk levels file: %w", err)
	}

	for name, level := range file.RiskLevels {
		lvl := capability.RiskLevel(strings.ToLower(level))
		switch lvl {
		case capability.RiskCritical, capability.RiskHigh, capability.RiskMedium, capability.RiskInfo:
		default:
			return nil, fmt.Errorf("unknown risk level %q for capability %q", level, name)
		}
		table[capability.Name(name)] = lvl
	}
	return table, nil
}
