package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var pairPattern = regexp.MustCompile(`^([A-Z0-9]+)\s*(?:\s+TO\s+|_|/|->)\s*([A-Z0-9]+)$`)

// ParsePairCommand parses an exchange pair in one of the forms
//   - "ETH to EOS"
//   - "ETH_EOS"
//   - "eth/eos"
//   - "ETH -> EOS"
//
// and returns the base and quote symbols.
func ParsePairCommand(command string) (base, quote string, err error) {
	command = strings.TrimSpace(strings.ToUpper(command))
	command = strings.TrimPrefix(command, "QUOTE ")

	matches := pairPattern.FindStringSubmatch(command)
	if matches == nil {
		return "", "", fmt.Errorf("invalid pair format. Expected: '<asset> to <asset>' (e.g., 'ETH to EOS')")
	}

	base = NormalizeTokenSymbol(matches[1])
	quote = NormalizeTokenSymbol(matches[2])
	if base == quote {
		return "", "", fmt.Errorf("cannot shift %s into itself", base)
	}
	return base, quote, nil
}

// NormalizeTokenSymbol normalizes token symbols to the exchange format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"ETHER": "ETH",
		"WETH":  "ETH",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
