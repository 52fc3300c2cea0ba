package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

//go:embed chains.yaml
var chainsYAML []byte

// ErrUnsupportedChain indicates a chain id missing from the registry.
var ErrUnsupportedChain = errors.New("unsupported chain")

// Chain is one entry of the chain registry.
type Chain struct {
	ID           uint64   `yaml:"id"`
	Name         string   `yaml:"name"`
	RPCEnv       string   `yaml:"rpc_env"`
	FallbackRPCs []string `yaml:"fallback_rpcs"`
}

// Registry maps chain ids to their RPC configuration.
type Registry struct {
	chains map[uint64]Chain
}

// LoadChains parses the embedded chain registry.
func LoadChains() (*Registry, error) {
	return ParseChains(chainsYAML)
}

// ParseChains parses a chain registry document.
func ParseChains(data []byte) (*Registry, error) {
	var list []Chain
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing chain registry: %w", err)
	}

	chains := make(map[uint64]Chain, len(list))
	for _, c := range list {
		if c.ID == 0 || c.Name == "" {
			return nil, fmt.Errorf("parsing chain registry: entry %+v needs id and name", c)
		}
		if _, dup := chains[c.ID]; dup {
			return nil, fmt.Errorf("parsing chain registry: duplicate chain id %d", c.ID)
		}
		chains[c.ID] = c
	}
	return &Registry{chains: chains}, nil
}

// Get returns the chain with the given id.
func (r *Registry) Get(id uint64) (Chain, error) {
	c, ok := r.chains[id]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %d", ErrUnsupportedChain, id)
	}
	return c, nil
}

// All returns every chain ordered by id.
func (r *Registry) All() []Chain {
	all := lo.Values(r.chains)
	slices.SortFunc(all, func(a, b Chain) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return all
}

// RPCCandidates lists endpoints to probe for the chain, in priority order:
// rpcURL (the global override), the chain's env override, then the fallbacks.
func (c Chain) RPCCandidates(rpcURL string) []string {
	candidates := []string{rpcURL}
	if c.RPCEnv != "" {
		candidates = append(candidates, os.Getenv(c.RPCEnv))
	}
	candidates = append(candidates, c.FallbackRPCs...)
	return lo.Uniq(lo.Compact(candidates))
}
