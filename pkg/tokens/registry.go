// Package tokens resolves ERC20 symbols to contract addresses from an
// ethTokens.json registry.
package tokens

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

//go:embed ethTokens.json
var builtinRegistry []byte

var (
	ErrUnknownSymbol  = errors.New("token symbol not in registry")
	ErrMissingAddress = errors.New("no contract address in registry")
)

// Token is one registry entry
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimal"`
	Type     string `json:"type"`
}

// ContractAddress returns the parsed contract address
func (t Token) ContractAddress() common.Address {
	return common.HexToAddress(t.Address)
}

// Registry is a loaded token list
type Registry struct {
	tokens []Token
	source string
}

// Load reads a registry file. When path does not exist and is a bare file
// name, the bundled registry is used instead.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) || strings.ContainsRune(path, os.PathSeparator) {
			return nil, fmt.Errorf("failed to read token registry: %w", err)
		}
		return Parse(builtinRegistry, "builtin")
	}
	return Parse(data, path)
}

// Parse decodes registry JSON. source names it in messages.
func Parse(data []byte, source string) (*Registry, error) {
	var tokens []Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token registry %s: %w", source, err)
	}
	return &Registry{tokens: tokens, source: source}, nil
}

// Source returns where the registry was loaded from
func (r *Registry) Source() string {
	return r.source
}

// Lookup finds the first entry for symbol and checks that it has a usable
// contract address.
func (r *Registry) Lookup(symbol string) (Token, error) {
	for _, t := range r.tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			if t.Address == "" {
				return Token{}, fmt.Errorf("%w: %s", ErrMissingAddress, symbol)
			}
			if !common.IsHexAddress(t.Address) {
				return Token{}, fmt.Errorf("invalid contract address %q for %s", t.Address, symbol)
			}
			return t, nil
		}
	}
	return Token{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
}

// List returns all entries sorted by symbol
func (r *Registry) List() []Token {
	tokens := append([]Token(nil), r.tokens...)
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Symbol < tokens[j].Symbol
	})
	return tokens
}
