package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// SwapRequest is a parsed trade command
type SwapRequest struct {
	Amount    string
	SellToken string
	BuyToken  string
}

// SendRequest is a parsed transfer command
type SendRequest struct {
	Amount  string
	Token   string
	Address string
}

var (
	swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9]+|0X[0-9A-F]{40})\s+(?:TO|FOR)\s+([A-Z0-9]+|0X[0-9A-F]{40})$`)
	sendPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+(\S+)\s+to\s+(\S+)$`)
)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 100 REEF to USDC"
//   - "1.5 MRD for REEF"
//   - "10 0x0000000000000000000000000000000001000000 to USDC"
func ParseSwapCommand(command string) (*SwapRequest, error) {
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 100 REEF to USDC')")
	}

	return &SwapRequest{
		Amount:    matches[1],
		SellToken: normalizeRef(matches[2]),
		BuyToken:  normalizeRef(matches[3]),
	}, nil
}

// ParseSendCommand parses a transfer command such as "send 5 REEF to 0x...".
// The destination keeps its case since native addresses are case sensitive.
func ParseSendCommand(command string) (*SendRequest, error) {
	command = strings.Join(strings.Fields(command), " ")
	if len(command) >= 5 && strings.EqualFold(command[:5], "send ") {
		command = command[5:]
	}
	if i := strings.LastIndex(strings.ToLower(command), " to "); i >= 0 {
		command = command[:i] + " to " + command[i+4:]
	}

	matches := sendPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid send command format. Expected: 'send <amount> <token> to <address>' (e.g., 'send 5 REEF to 0x...')")
	}

	return &SendRequest{
		Amount:  matches[1],
		Token:   NormalizeTokenSymbol(matches[2]),
		Address: matches[3],
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.SellToken == "" {
		return fmt.Errorf("sell token is required")
	}
	if req.BuyToken == "" {
		return fmt.Errorf("buy token is required")
	}
	if strings.EqualFold(req.SellToken, req.BuyToken) {
		return fmt.Errorf("sell and buy token must differ")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if isAddress(symbol) {
		return strings.ToLower(symbol)
	}
	symbol = strings.ToUpper(symbol)

	aliases := map[string]string{
		"WREEF": "REEF",
	}
	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}
	return symbol
}

func normalizeRef(ref string) string {
	if isAddress(ref) {
		return "0x" + strings.ToLower(ref[2:])
	}
	return NormalizeTokenSymbol(ref)
}

func isAddress(s string) bool {
	return len(s) == 42 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"))
}
