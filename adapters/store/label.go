package store

import "strings"

// defaultLabel derives a display label from the wallet kind when the
// client supplies none, e.g. "metamask" becomes "Metamask Wallet".
func defaultLabel(kind string) string {
	if kind == "" {
		return "Wallet"
	}
	return strings.ToUpper(kind[:1]) + strings.ToLower(kind[1:]) + " Wallet"
}
