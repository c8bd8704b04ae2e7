package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsEVMAddress reports whether addr is a 20-byte hex address.
func IsEVMAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// CanonicalAddress returns the EIP-55 checksummed form of EVM addresses.
// Other chains (base58 mints, etc.) are case sensitive and returned trimmed.
func CanonicalAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}

// SameAddress compares two token or pool addresses.
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return CanonicalAddress(a) == CanonicalAddress(b)
}

// ValidTokenAddress accepts EVM hex addresses and base58-looking addresses
// between 32 and 44 characters.
func ValidTokenAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return true
	}
	if len(addr) < 32 || len(addr) > 44 {
		return false
	}
	for _, r := range addr {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
