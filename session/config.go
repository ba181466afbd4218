package session

import (
	"github.com/sbip-sg/tevm/config"
	"github.com/sbip-sg/tevm/log"
	"github.com/sbip-sg/tevm/vm"
)

// Config is the session's full option set, an enumerated struct rather than
// a builder, following the teacher's vm.Config/ForkRules shape. Every
// session owns its own Config and passes the values it needs down into the
// EVM and state database it constructs — no shared mutable globals.
type Config struct {
	ChainID       uint64
	Hardfork      string
	BlockGasLimit uint64

	DisableBaseFee            bool
	DisableBlockGasLimit      bool
	DisableEIP3607            bool
	DisableAllInstrumentation bool

	EnableSelfdestructDetection bool
	EnableTxOriginDetection     bool
	EnableTimestampDetection    bool
	EnableBlockhashDetection    bool
	EnableBlocknumberDetection  bool
	EnableDivZeroDetection      bool
	EnableOverflowDetection     bool
	EnablePCCoverage            bool

	KeepSnapshotAfterRestore bool

	ForkURL   string
	ForkBlock uint64

	ProviderCache config.ProviderCacheKind

	// Logger defaults to log.Default().Module("session") when nil.
	Logger *log.Logger
}

// DefaultConfig returns the configuration a session uses when the caller
// supplies a zero-value Config: a recent post-Shanghai hardfork baseline,
// full instrumentation enabled except the compiler-version-sensitive
// overflow heuristic (see DESIGN.md's Open Questions), and no fork backing.
func DefaultConfig() Config {
	return Config{
		ChainID:       1,
		Hardfork:      "cancun",
		BlockGasLimit: 30_000_000,

		EnableSelfdestructDetection: true,
		EnableTxOriginDetection:     true,
		EnableTimestampDetection:    true,
		EnableBlockhashDetection:    true,
		EnableBlocknumberDetection:  true,
		EnableDivZeroDetection:      true,
		EnableOverflowDetection:     false,
		EnablePCCoverage:            true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChainID == 0 {
		c.ChainID = d.ChainID
	}
	if c.Hardfork == "" {
		c.Hardfork = d.Hardfork
	}
	if c.BlockGasLimit == 0 {
		c.BlockGasLimit = d.BlockGasLimit
	}
	if c.Logger == nil {
		c.Logger = log.Default().Module("session")
	}
	return c
}

func (c Config) detectorConfig() vm.DetectorConfig {
	if c.DisableAllInstrumentation {
		return vm.DetectorConfig{}
	}
	return vm.DetectorConfig{
		EnableSelfdestructDetection: c.EnableSelfdestructDetection,
		EnableTxOriginDetection:     c.EnableTxOriginDetection,
		EnableTimestampDetection:    c.EnableTimestampDetection,
		EnableBlockhashDetection:    c.EnableBlockhashDetection,
		EnableBlocknumberDetection:  c.EnableBlocknumberDetection,
		EnableDivZeroDetection:      c.EnableDivZeroDetection,
		EnableOverflowDetection:     c.EnableOverflowDetection,
		EnablePCCoverage:            c.EnablePCCoverage,
	}
}
