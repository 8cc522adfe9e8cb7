// Package address checks recipient and refund addresses before they are sent
// to a swap engine.
package address

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

var evmChains = map[string]bool{
	"eth":      true,
	"ethereum": true,
	"arb":      true,
	"base":     true,
	"bsc":      true,
	"polygon":  true,
	"pol":      true,
	"avax":     true,
	"op":       true,
	"gnosis":   true,
	"bera":     true,
}

// named NEAR accounts: lowercase parts separated by dots, 2 to 64 chars total
var nearAccount = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

var implicitNear = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsEVM reports whether chain uses 20-byte hex addresses
func IsEVM(chain string) bool {
	return evmChains[strings.ToLower(chain)]
}

// Validate checks that addr is well formed for chain. Chains without a
// dedicated check only need a non-empty address without whitespace.
func Validate(chain, addr string) error {
	chain = strings.ToLower(strings.TrimSpace(chain))
	if addr == "" {
		return fmt.Errorf("empty %s address", chain)
	}
	if strings.ContainsAny(addr, " \t\r\n") {
		return fmt.Errorf("invalid %s address %q: contains whitespace", chain, addr)
	}

	switch {
	case IsEVM(chain):
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s address: %s", chain, addr)
		}
		// Mixed case means the address carries an EIP-55 checksum.
		hex := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
		if hex != strings.ToLower(hex) && hex != strings.ToUpper(hex) {
			if common.HexToAddress(addr).Hex() != "0x"+hex {
				return fmt.Errorf("invalid %s address %s: checksum mismatch", chain, addr)
			}
		}
	case chain == "sol" || chain == "solana":
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return fmt.Errorf("invalid solana address %s: %w", addr, err)
		}
	case chain == "near":
		if implicitNear.MatchString(addr) {
			return nil
		}
		if len(addr) < 2 || len(addr) > 64 || !nearAccount.MatchString(addr) {
			return fmt.Errorf("invalid near account: %s", addr)
		}
	}
	return nil
}
