package core

import "errors"

var (
	ErrInvalidAddress   = errors.New("invalid ethereum address")
	ErrNonceNotFound    = errors.New("nonce not found")
	ErrNonceExpired     = errors.New("nonce has expired")
	ErrNonceUsed        = errors.New("nonce has already been used")
	ErrSignatureFormat  = errors.New("malformed signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUserNotFound     = errors.New("user not found in tenant")
	ErrWalletNotFound   = errors.New("wallet connection not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")
)
