package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type RPCConfig struct {
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

type ChainConfig struct {
	RPC                *RPCConfig    `yaml:"rpc"`
	ChainID            string        `yaml:"chain_id"`
	BlockTime          time.Duration `yaml:"block_time"`
	BlockConfirmations uint64        `yaml:"required_block_confirmations"`
}

// ChainSideConfig describes the contracts watched on one side of a
// gateway pair and the worker used to transact on that side.
type ChainSideConfig struct {
	ChainName         string         `yaml:"chain"`
	Chain             *ChainConfig   `yaml:"-"`
	GatewayAddress    common.Address `yaml:"gateway_address"`
	AnchorAddress     common.Address `yaml:"anchor_address"`
	TokenAddress      common.Address `yaml:"token_address"`
	StartBlock        uint64         `yaml:"start_block"`
	MaxBlockRangeSize uint64         `yaml:"max_block_range_size"`
	WorkerKey         string         `yaml:"worker_key"`
}

// FacilitatorConfig is one origin/auxiliary gateway pair operated by this
// process. The map key in Config.Facilitators is the auxiliary chain id.
type FacilitatorConfig struct {
	AuxChainID      string           `yaml:"-"`
	Origin          *ChainSideConfig `yaml:"origin"`
	Auxiliary       *ChainSideConfig `yaml:"auxiliary"`
	ComposerAddress common.Address   `yaml:"composer_address"`
	NotifyInterval  time.Duration    `yaml:"notify_interval"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`
}

type PresenterConfig struct {
	Host string `yaml:"host"`
}

type Config struct {
	Chains       map[string]*ChainConfig       `yaml:"chains"`
	Facilitators map[string]*FacilitatorConfig `yaml:"facilitators"`
	DBConfig     *DBConfig                     `yaml:"postgres"`
	LogLevel     logrus.Level                  `yaml:"log_level"`
	Presenter    *PresenterConfig              `yaml:"presenter"`
}

const defaultMaxBlockRangeSize = 1000
const defaultNotifyInterval = 5 * time.Second

func (c *RPCConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Host    string `yaml:"host"`
		Timeout string `yaml:"timeout"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.Host = raw.Host
	return decodeDuration(raw.Timeout, &c.Timeout)
}

func (c *ChainConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		RPC                *RPCConfig `yaml:"rpc"`
		ChainID            string     `yaml:"chain_id"`
		BlockTime          string     `yaml:"block_time"`
		BlockConfirmations uint64     `yaml:"required_block_confirmations"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.RPC = raw.RPC
	c.ChainID = raw.ChainID
	c.BlockConfirmations = raw.BlockConfirmations
	return decodeDuration(raw.BlockTime, &c.BlockTime)
}

func (c *FacilitatorConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Origin          *ChainSideConfig `yaml:"origin"`
		Auxiliary       *ChainSideConfig `yaml:"auxiliary"`
		ComposerAddress common.Address   `yaml:"composer_address"`
		NotifyInterval  string           `yaml:"notify_interval"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.Origin = raw.Origin
	c.Auxiliary = raw.Auxiliary
	c.ComposerAddress = raw.ComposerAddress
	return decodeDuration(raw.NotifyInterval, &c.NotifyInterval)
}

func decodeDuration(raw string, out *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("can't parse duration %q: %w", raw, err)
	}
	*out = d
	return nil
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := decodeStrict(cfg, blob); err != nil {
		return nil, err
	}
	if err := cfg.init(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeStrict rejects unknown yaml keys, so a typo in an address book
// entry fails at startup instead of silently watching nothing.
func decodeStrict(out interface{}, blob []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}

// ReadConfigWithEnv reads the config after substituting ${VAR} references
// from the process environment, so that secrets stay out of the file.
func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return ReadConfig([]byte(os.ExpandEnv(string(blob))))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %q: %w", path, err)
	}
	return ReadConfigWithEnv(blob)
}

func (cfg *Config) init() error {
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logrus.InfoLevel
	}
	for auxChainID, fac := range cfg.Facilitators {
		fac.AuxChainID = auxChainID
		if fac.NotifyInterval == 0 {
			fac.NotifyInterval = defaultNotifyInterval
		}
		for _, side := range []*ChainSideConfig{fac.Origin, fac.Auxiliary} {
			if side == nil {
				return fmt.Errorf("facilitator %s misses origin or auxiliary section", auxChainID)
			}
			chain, ok := cfg.Chains[side.ChainName]
			if !ok {
				return fmt.Errorf("facilitator %s references unknown chain %q", auxChainID, side.ChainName)
			}
			side.Chain = chain
			if side.MaxBlockRangeSize == 0 {
				side.MaxBlockRangeSize = defaultMaxBlockRangeSize
			}
			if side.GatewayAddress == (common.Address{}) {
				return fmt.Errorf("facilitator %s misses gateway address on chain %q", auxChainID, side.ChainName)
			}
			if side.AnchorAddress == (common.Address{}) {
				return fmt.Errorf("facilitator %s misses anchor address on chain %q", auxChainID, side.ChainName)
			}
		}
		if fac.Auxiliary.Chain.ChainID != auxChainID {
			return fmt.Errorf("facilitator key %s does not match auxiliary chain id %s", auxChainID, fac.Auxiliary.Chain.ChainID)
		}
	}
	return nil
}
