package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Chain holds the consensus constants. Every node on a network must agree on them.
type Chain struct {
	Difficulty     int           `yaml:"difficulty"`
	MineRate       time.Duration `yaml:"mine_rate"`
	InitialBalance uint64        `yaml:"initial_balance"`
	MiningReward   uint64        `yaml:"mining_reward"`
}

type Node struct {
	ListenAddr    string        `yaml:"listen_addr"`
	Peers         []string      `yaml:"peers"`
	HTTPAddr      string        `yaml:"http_addr"`
	DataDir       string        `yaml:"data_dir"`
	AutoMine      time.Duration `yaml:"auto_mine"`
	LogFile       string        `yaml:"log_file"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	LogMaxSizeMB  int           `yaml:"log_max_size_mb"`
	LogMaxAgeDays int           `yaml:"log_max_age_days"`
}

type Config struct {
	Chain Chain `yaml:"chain"`
	Node  Node  `yaml:"node"`
}

func DefaultChain() Chain {
	return Chain{
		Difficulty:     3,
		MineRate:       3000 * time.Millisecond,
		InitialBalance: 1000,
		MiningReward:   50,
	}
}

func Default() Config {
	return Config{
		Chain: DefaultChain(),
		Node: Node{
			ListenAddr:    "/ip4/0.0.0.0/tcp/5001",
			HTTPAddr:      ":3001",
			DataDir:       "data",
			LogLevel:      "info",
			LogFormat:     "text",
			LogMaxSizeMB:  100,
			LogMaxAgeDays: 14,
		},
	}
}

// Load reads a YAML file on top of Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.WithStack(err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	return c.Chain.Validate()
}

func (c Chain) Validate() error {
	if c.Difficulty < 1 {
		return errors.Wrapf(ErrInvalidConfig, "difficulty must be at least 1, got %d", c.Difficulty)
	}
	if c.MineRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "mine rate must be positive, got %s", c.MineRate)
	}
	if c.MiningReward == 0 {
		return errors.Wrap(ErrInvalidConfig, "mining reward must be positive")
	}
	return nil
}
