package ports

import "github.com/finsight/walletauth/core"

// Tokenizer converts between wallet credentials and signed tokens.
type Tokenizer interface {
	// CredentialToToken mints a signed, time-limited token carrying the
	// credential's claims.
	CredentialToToken(cred *core.WalletCredential) (string, error)

	// TokenToCredential validates a token and returns its claims. It fails
	// closed: expired, malformed, wrong-method, or wrong-type tokens all
	// return a nil credential with an error.
	TokenToCredential(token string) (*core.WalletCredential, error)
}
