package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/defistate/defistate-router-go/chains/ethereum"
	"github.com/defistate/defistate-router-go/engine"
	"github.com/defistate/defistate-router-go/protocols/balancerv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// rpcURLEnv overrides the venue RPC endpoint so the credential-bearing URL
// stays out of config files.
const rpcURLEnv = "ROUTERD_VENUE_RPC_URL"

const (
	defaultStreamTable       = "routing_mainnet"
	defaultMetricsListenAddr = ":9090"
)

// RouterConfig is the daemon configuration loaded from YAML.
type RouterConfig struct {
	ChainID           uint64      `yaml:"chainId"`
	StateStreamURL    string      `yaml:"stateStreamUrl"`
	StreamTable       string      `yaml:"streamTable"`
	MetricsListenAddr string      `yaml:"metricsListenAddr"`
	Venue             VenueConfig `yaml:"venue"`
}

// VenueConfig holds the venue contract addresses and the executing account.
// Addresses are 0x-hex strings in the file; optional venues stay empty.
type VenueConfig struct {
	RPCURL    string `yaml:"rpcUrl"`
	Sender    string `yaml:"sender"`
	V2Factory string `yaml:"v2Factory"`
	V2Router  string `yaml:"v2Router"`
	V3Factory string `yaml:"v3Factory"`
	V3Router  string `yaml:"v3Router"`
	Vault     string `yaml:"vault"`
}

// LoadConfig reads the daemon configuration from path, applying environment
// overrides on top of the file.
func LoadConfig(path string) (*RouterConfig, error) {
	// .env is a local development convenience; absence is fine.
	_ = godotenv.Load()

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := &RouterConfig{
		StreamTable:       defaultStreamTable,
		MetricsListenAddr: defaultMetricsListenAddr,
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if v := os.Getenv(rpcURLEnv); v != "" {
		cfg.Venue.RPCURL = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *RouterConfig) validate() error {
	if c.ChainID == 0 {
		return errors.New("config: chainId is required")
	}
	if c.StateStreamURL == "" {
		return errors.New("config: stateStreamUrl is required")
	}
	if c.StreamTable == "" {
		return errors.New("config: streamTable is required")
	}
	if c.MetricsListenAddr == "" {
		return errors.New("config: metricsListenAddr is required")
	}
	return nil
}

// ClientConfig converts the venue section into the chain client's config.
// Required/optional address semantics are enforced by that config's own
// validation; this only rejects malformed hex.
func (v *VenueConfig) ClientConfig() (ethereum.Config, error) {
	out := ethereum.Config{}
	fields := []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"sender", v.Sender, &out.Sender},
		{"v2Factory", v.V2Factory, &out.V2Factory},
		{"v2Router", v.V2Router, &out.V2Router},
		{"v3Factory", v.V3Factory, &out.V3Factory},
		{"v3Router", v.V3Router, &out.V3Router},
		{"vault", v.Vault, &out.Vault},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if !common.IsHexAddress(f.value) {
			return ethereum.Config{}, fmt.Errorf("config: venue %s: %q is not a hex address", f.name, f.value)
		}
		*f.dst = common.HexToAddress(f.value)
	}
	if v.RPCURL == "" {
		return ethereum.Config{}, fmt.Errorf("config: venue rpcUrl is required (or set %s)", rpcURLEnv)
	}
	return out, nil
}

// RoutesConfig is the declarative route list applied through the router on
// startup.
type RoutesConfig struct {
	Routes []RouteSpec `yaml:"routes"`
}

// RouteSpec declares one route: a token sequence and the backend-specific
// per-hop parameters.
type RouteSpec struct {
	Backend       string   `yaml:"backend"`
	Tokens        []string `yaml:"tokens"`
	Fees          []uint32 `yaml:"fees,omitempty"`
	Pools         []string `yaml:"pools,omitempty"`
	Bidirectional bool     `yaml:"bidirectional,omitempty"`
}

// LoadRoutes reads and validates a declarative route list.
func LoadRoutes(path string) (*RoutesConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var routes RoutesConfig
	if err := yaml.Unmarshal(buf, &routes); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(routes.Routes) == 0 {
		return nil, fmt.Errorf("config: %s declares no routes", path)
	}
	for i := range routes.Routes {
		if err := routes.Routes[i].validate(); err != nil {
			return nil, fmt.Errorf("config: route %d: %w", i, err)
		}
	}
	return &routes, nil
}

func (s *RouteSpec) validate() error {
	if _, err := s.TokenSequence(); err != nil {
		return err
	}
	if _, err := s.Params(); err != nil {
		return err
	}
	return nil
}

// TokenSequence parses the token column into addresses.
func (s *RouteSpec) TokenSequence() ([]common.Address, error) {
	if len(s.Tokens) < 2 {
		return nil, errors.New("a route needs at least two tokens")
	}
	tokens := make([]common.Address, len(s.Tokens))
	for i, raw := range s.Tokens {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("token %q is not a hex address", raw)
		}
		tokens[i] = common.HexToAddress(raw)
	}
	return tokens, nil
}

// Params assembles the backend-specific route parameters from the declared
// fields.
func (s *RouteSpec) Params() (engine.RouteParams, error) {
	switch engine.Backend(s.Backend) {
	case engine.BackendConstantProduct:
		if len(s.Fees) > 0 || len(s.Pools) > 0 {
			return nil, errors.New("constant-product routes take no fees or pools")
		}
		return uniswapv2.RouteParams{}, nil

	case engine.BackendConcentratedLiquidity:
		if len(s.Pools) > 0 {
			return nil, errors.New("concentrated-liquidity routes take fees, not pools")
		}
		if len(s.Fees) == 0 {
			return nil, errors.New("concentrated-liquidity routes require fees")
		}
		return uniswapv3.RouteParams{Fees: s.Fees}, nil

	case engine.BackendWeightedVaultBatch:
		if len(s.Fees) > 0 {
			return nil, errors.New("weighted-vault-batch routes take pools, not fees")
		}
		if len(s.Pools) == 0 {
			return nil, errors.New("weighted-vault-batch routes require pools")
		}
		pools := make([]balancerv2.PoolID, len(s.Pools))
		for i, raw := range s.Pools {
			if err := pools[i].UnmarshalText([]byte(raw)); err != nil {
				return nil, fmt.Errorf("pool %q: %w", raw, err)
			}
		}
		return balancerv2.RouteParams{Pools: pools}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}
