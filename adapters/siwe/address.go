package siwe

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/finsight/walletauth/core"
)

// NormalizeAddress canonicalizes an externally supplied Ethereum address
// into its EIP-55 checksummed form. Input in all-lower or all-upper hex is
// accepted as-is; mixed-case input must already carry a valid checksum.
// Every store key and comparison downstream uses the returned form.
func NormalizeAddress(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", core.ErrInvalidAddress
	}

	checksummed := common.HexToAddress(raw).Hex()

	hexPart := strings.TrimPrefix(raw, "0x")
	hexPart = strings.TrimPrefix(hexPart, "0X")
	if isMixedCase(hexPart) && "0x"+hexPart != checksummed {
		// The caller supplied a checksum and it does not match.
		return "", core.ErrInvalidAddress
	}

	return checksummed, nil
}

func isMixedCase(s string) bool {
	hasLower, hasUpper := false, false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'f':
			hasLower = true
		case r >= 'A' && r <= 'F':
			hasUpper = true
		}
	}
	return hasLower && hasUpper
}
