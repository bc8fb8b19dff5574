// Package config holds the knobs of a simulation run and binds them to command line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
)

type Config struct {
	// Difficulty is the number of leading zero bits a block hash needs.
	Difficulty uint64
	// HashRate is how many nonces a miner tries per tick.
	HashRate int
	// CancelFeeBps is the cancellation fee in basis points of the cancelled amount.
	CancelFeeBps uint64
	// GenesisSupply is minted to the authority before the first transaction.
	GenesisSupply uint64

	Nodes  int
	Miners int
	Ticks  int

	MaxDelay    int
	Duplication float64
	Seed        int64
	Verbose     bool
}

func Default() Config {
	return Config{
		Difficulty:    13,
		HashRate:      50,
		CancelFeeBps:  300,
		GenesisSupply: 1_000_000,
		Nodes:         4,
		Miners:        2,
		Ticks:         2000,
		MaxDelay:      3,
		Duplication:   0.1,
		Seed:          1,
	}
}

var (
	ErrNoNodes       = errors.New("at least two nodes are required")
	ErrTooManyMiners = errors.New("more miners than nodes")
)

func (c Config) Validate() error {
	var errs []error
	if c.Nodes < 2 {
		errs = append(errs, ErrNoNodes)
	}
	if c.Miners < 0 || c.Miners > c.Nodes {
		errs = append(errs, fmt.Errorf("%w: %d miners for %d nodes", ErrTooManyMiners, c.Miners, c.Nodes))
	}
	if c.Difficulty > 256 {
		errs = append(errs, fmt.Errorf("difficulty %d exceeds the 256 bit hash", c.Difficulty))
	}
	if c.HashRate < 1 {
		errs = append(errs, fmt.Errorf("hash rate must be positive, got %d", c.HashRate))
	}
	if c.CancelFeeBps > 10_000 {
		errs = append(errs, fmt.Errorf("cancel fee %d bps is more than the whole amount", c.CancelFeeBps))
	}
	if c.Ticks < 0 || c.MaxDelay < 0 {
		errs = append(errs, errors.New("ticks and max delay must not be negative"))
	}
	if c.Duplication < 0 || c.Duplication > 1 {
		errs = append(errs, fmt.Errorf("duplication %v is not a probability", c.Duplication))
	}
	return errors.Join(errs...)
}

// RegisterFlags binds every field to a flag on fs, using the current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Uint64Var(&c.Difficulty, "difficulty", c.Difficulty, "leading zero bits required of a block hash")
	fs.IntVar(&c.HashRate, "hashrate", c.HashRate, "nonces each miner tries per tick")
	fs.Uint64Var(&c.CancelFeeBps, "cancel-fee", c.CancelFeeBps, "cancellation fee in basis points")
	fs.Uint64Var(&c.GenesisSupply, "supply", c.GenesisSupply, "coins minted to the authority at genesis")
	fs.IntVar(&c.Nodes, "nodes", c.Nodes, "number of nodes")
	fs.IntVar(&c.Miners, "miners", c.Miners, "how many of the nodes mine (pow only)")
	fs.IntVar(&c.Ticks, "ticks", c.Ticks, "scheduler rounds to run")
	fs.IntVar(&c.MaxDelay, "max-delay", c.MaxDelay, "maximum delivery delay in ticks")
	fs.Float64Var(&c.Duplication, "dup", c.Duplication, "probability a delivery is duplicated")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "seed for the network and the spenders")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "log at debug level")
}
