package siwe

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/finsight/walletauth/core"
)

// VerifySignature recovers the signer of an EIP-191 personal-sign message
// and compares it case-insensitively to the claimed address. A signature
// that cannot even be decoded surfaces core.ErrSignatureFormat; one that
// decodes but does not recover to the claimed address is simply false.
// Pure function: no side effects, no I/O.
func VerifySignature(address, message, signature string) (bool, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, core.ErrSignatureFormat
	}
	if len(sig) != crypto.SignatureLength {
		return false, core.ErrSignatureFormat
	}

	// Wallets emit V as 27/28; go-ethereum recovery expects 0/1.
	recoverySig := make([]byte, crypto.SignatureLength)
	copy(recoverySig, sig)
	if recoverySig[crypto.RecoveryIDOffset] >= 27 {
		recoverySig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(message))
	pubKey, err := crypto.SigToPub(hash, recoverySig)
	if err != nil {
		// Decodable but cryptographically unusable: a failed verification,
		// not a caller error.
		return false, nil
	}

	recovered := crypto.PubkeyToAddress(*pubKey).Hex()
	return strings.EqualFold(recovered, address), nil
}
