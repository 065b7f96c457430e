package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"reservecore/crypto"
)

// Config carries the daemon's runtime settings.
type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	Environment          string `toml:"Environment"`
	OwnerAddress         string `toml:"OwnerAddress"`
	TimelockDelaySeconds uint64 `toml:"TimelockDelaySeconds"`

	Log    LogConfig   `toml:"log"`
	Tokens TokenConfig `toml:"tokens"`
}

// LogConfig controls the structured log output. An empty File disables
// rotation and logs to stdout only.
type LogConfig struct {
	File      string `toml:"File"`
	MaxSizeMB int    `toml:"MaxSizeMB"`
}

// TokenConfig names the three ledgers the reserve engine manages.
type TokenConfig struct {
	Reserve string `toml:"Reserve"`
	Pegged  string `toml:"Pegged"`
	Payment string `toml:"Payment"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./reserve-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.TimelockDelaySeconds == 0 {
		cfg.TimelockDelaySeconds = 259_200
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if strings.TrimSpace(cfg.Tokens.Reserve) == "" {
		cfg.Tokens.Reserve = "RSV"
	}
	if strings.TrimSpace(cfg.Tokens.Pegged) == "" {
		cfg.Tokens.Pegged = "PEG"
	}
	if strings.TrimSpace(cfg.Tokens.Payment) == "" {
		cfg.Tokens.Payment = "USDR"
	}
}

// createDefault creates and saves a default configuration file. A fresh owner
// identity is generated so a new deployment starts with a usable admin
// account.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{OwnerAddress: key.Address().String()}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// Validate checks the loaded configuration for values the daemon cannot start
// without.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress must not be empty")
	}
	if _, err := crypto.DecodeAddress(cfg.OwnerAddress); err != nil {
		return fmt.Errorf("config: invalid OwnerAddress: %w", err)
	}
	if cfg.TimelockDelaySeconds == 0 {
		return fmt.Errorf("config: TimelockDelaySeconds must be positive")
	}
	symbols := map[string]struct{}{}
	for _, symbol := range []string{cfg.Tokens.Reserve, cfg.Tokens.Pegged, cfg.Tokens.Payment} {
		trimmed := strings.ToUpper(strings.TrimSpace(symbol))
		if trimmed == "" {
			return fmt.Errorf("config: token symbols must not be empty")
		}
		if _, dup := symbols[trimmed]; dup {
			return fmt.Errorf("config: token symbols must be distinct")
		}
		symbols[trimmed] = struct{}{}
	}
	return nil
}
