package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config carries the daemon settings. Addresses are 0x-prefixed hex strings
// in the file and validated on load.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	AuthToken  string `toml:"AuthToken"`

	// Escrow settings applied at start-up.
	BlockTimeSeconds int64  `toml:"BlockTimeSeconds"`
	FeePercent       uint64 `toml:"FeePercent"`
	FeeForGas        int64  `toml:"FeeForGas"`
	FeeAddress       string `toml:"FeeAddress"`

	// Role grants seeded into the ledger on boot.
	Admins        []string `toml:"Admins"`
	DefaultAdmins []string `toml:"DefaultAdmins"`

	// Boost and transfer forwarder settings.
	SidekickWallet     string `toml:"SidekickWallet"`
	SidekickPercentage uint64 `toml:"SidekickPercentage"`
	TransferFeeBps     uint64 `toml:"TransferFeeBps"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./sidekick-data"
	}
	if c.Admins == nil {
		c.Admins = []string{}
	}
	if c.DefaultAdmins == nil {
		c.DefaultAdmins = []string{}
	}
}

// Validate checks address fields and fee bounds.
func (c *Config) Validate() error {
	if c.FeeForGas < 0 {
		return fmt.Errorf("config: FeeForGas must be non-negative")
	}
	if c.TransferFeeBps > 10_000 {
		return fmt.Errorf("config: TransferFeeBps above 10000")
	}
	if c.SidekickPercentage > 100 {
		return fmt.Errorf("config: SidekickPercentage above 100")
	}
	for field, value := range map[string]string{
		"FeeAddress":     c.FeeAddress,
		"SidekickWallet": c.SidekickWallet,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	for _, addr := range append(append([]string{}, c.Admins...), c.DefaultAdmins...) {
		if _, err := ParseAddress(addr); err != nil {
			return fmt.Errorf("config: admin address %q: %w", addr, err)
		}
	}
	return nil
}

// ParseAddress decodes a 0x-prefixed hex address into its raw bytes.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	parsed := common.HexToAddress(trimmed)
	copy(addr[:], parsed[:])
	return addr, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         ":8080",
		DataDir:            "./sidekick-data",
		BlockTimeSeconds:   600,
		FeePercent:         0,
		FeeForGas:          0,
		Admins:             []string{},
		DefaultAdmins:      []string{},
		SidekickPercentage: 5,
		TransferFeeBps:     0,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
