package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for vaultd.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	DataDir       string        `yaml:"data_dir"`
	HistoryPath   string        `yaml:"history"`
	Vault         VaultConfig   `yaml:"vault"`
	Oracle        OracleConfig  `yaml:"oracle"`
	Venue         VenueConfig   `yaml:"venue"`
	Auth          AuthConfig    `yaml:"auth"`
	Genesis       GenesisConfig `yaml:"genesis"`
}

// GenesisConfig seeds the in-memory collaborators for local runs: the vault's
// starting balances, the pool inventory, and the initial oracle answer at 1e8
// scale. Deployments against real holders leave it empty.
type GenesisConfig struct {
	StableBalance   string `yaml:"stable_balance"`
	VolatileBalance string `yaml:"volatile_balance"`
	NativeBalance   string `yaml:"native_balance"`
	PoolStable      string `yaml:"pool_stable"`
	PoolVolatile    string `yaml:"pool_volatile"`
	PriceAnswer     string `yaml:"price_answer"`
}

// Amount parses a decimal amount field, returning nil for blank values.
func Amount(raw string) *big.Int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil
	}
	return value
}

// VaultConfig fixes the vault policy at provisioning time.
type VaultConfig struct {
	Address          string   `yaml:"address"`
	Owner            string   `yaml:"owner"`
	TargetStablePct  uint64   `yaml:"target_stable_pct"`
	DividendPct      uint64   `yaml:"dividend_pct"`
	DividendInterval Duration `yaml:"dividend_interval"`
	QuoteProbe       string   `yaml:"quote_probe"`
}

// OracleConfig tunes the authoritative price feed.
type OracleConfig struct {
	MaxPriceAge Duration `yaml:"max_price_age"`
}

// VenueConfig carries the swap venue policy constants.
type VenueConfig struct {
	FeeTier       uint32   `yaml:"fee_tier"`
	TradeDeadline Duration `yaml:"trade_deadline"`
	SlippageBps   uint64   `yaml:"slippage_bps"`
}

// AuthConfig maps bearer tokens onto caller addresses for the HTTP tier.
type AuthConfig struct {
	Principals []PrincipalConfig `yaml:"principals"`
}

// PrincipalConfig binds one bearer token to one caller address.
type PrincipalConfig struct {
	Token   string `yaml:"token"`
	Address string `yaml:"address"`
}

// Load reads and validates the configuration at the supplied path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	normalised := cfg.Normalise()
	if err := normalised.Validate(); err != nil {
		return nil, err
	}
	return &normalised, nil
}

// Normalise applies defaults to unset values: 0.30% fee tier, five minute
// deadline, no slippage floor, no staleness bound.
func (c Config) Normalise() Config {
	cfg := c
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8547"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.HistoryPath) == "" {
		cfg.HistoryPath = "./data/history.db"
	}
	if cfg.Venue.FeeTier == 0 {
		cfg.Venue.FeeTier = 3000
	}
	if cfg.Venue.TradeDeadline.Duration <= 0 {
		cfg.Venue.TradeDeadline.Duration = 5 * time.Minute
	}
	if cfg.Vault.DividendInterval.Duration <= 0 {
		cfg.Vault.DividendInterval.Duration = 30 * 24 * time.Hour
	}
	return cfg
}

// Validate rejects malformed addresses and out-of-range percentages.
func (c Config) Validate() error {
	if c.Vault.TargetStablePct > 100 {
		return fmt.Errorf("config: target_stable_pct %d out of range", c.Vault.TargetStablePct)
	}
	if c.Vault.DividendPct > 100 {
		return fmt.Errorf("config: dividend_pct %d out of range", c.Vault.DividendPct)
	}
	if _, err := parseAddress(c.Vault.Owner, "vault.owner"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Vault.Address) != "" {
		if _, err := parseAddress(c.Vault.Address, "vault.address"); err != nil {
			return err
		}
	}
	if probe := strings.TrimSpace(c.Vault.QuoteProbe); probe != "" {
		if _, ok := new(big.Int).SetString(probe, 10); !ok {
			return fmt.Errorf("config: invalid quote_probe %q", c.Vault.QuoteProbe)
		}
	}
	for i, principal := range c.Auth.Principals {
		if strings.TrimSpace(principal.Token) == "" {
			return fmt.Errorf("config: auth principal %d missing token", i)
		}
		if _, err := parseAddress(principal.Address, fmt.Sprintf("auth principal %d", i)); err != nil {
			return err
		}
	}
	return nil
}

func parseAddress(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s is not a valid address: %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

// OwnerAddress returns the configured initial principal.
func (c Config) OwnerAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Vault.Owner))
}

// VaultAddress returns the vault's holder address, defaulting to a fixed
// well-known slot when unset.
func (c Config) VaultAddress() common.Address {
	trimmed := strings.TrimSpace(c.Vault.Address)
	if trimmed == "" {
		return common.HexToAddress("0x0000000000000000000000000000000000000a11")
	}
	return common.HexToAddress(trimmed)
}

// QuoteProbeAmount returns the configured probe size or nil when unset.
func (c Config) QuoteProbeAmount() *big.Int {
	trimmed := strings.TrimSpace(c.Vault.QuoteProbe)
	if trimmed == "" {
		return nil
	}
	probe, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil
	}
	return probe
}
