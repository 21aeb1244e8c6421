package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/service"
	"github.com/gin-gonic/gin"
)

// WalletHandlers contains HTTP handlers for the wallet-auth endpoints.
type WalletHandlers struct {
	walletService *service.WalletService
}

// NewWalletHandlers creates new wallet handlers.
func NewWalletHandlers(walletService *service.WalletService) *WalletHandlers {
	return &WalletHandlers{walletService: walletService}
}

type nonceRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type nonceResponse struct {
	WalletAddress string    `json:"wallet_address"`
	Nonce         string    `json:"nonce"`
	Message       string    `json:"message"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type verifyRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
	ChainID       int64  `json:"chain_id"`
	WalletType    string `json:"wallet_type"`
	Label         string `json:"label"`
}

type authResponse struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int64  `json:"expires_in"`
	WalletAddress string `json:"wallet_address"`
	TenantID      string `json:"tenant_id"`
	UserID        string `json:"user_id"`
	WalletID      string `json:"wallet_id"`
}

type setPrimaryRequest struct {
	WalletID string `json:"wallet_id" binding:"required"`
}

// Nonce handles the challenge request (step 1 of the SIWE flow). Public:
// the caller proves nothing yet, it only learns what to sign.
func (h *WalletHandlers) Nonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	challenge, err := h.walletService.RequestChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, nonceResponse{
		WalletAddress: challenge.Address,
		Nonce:         challenge.Nonce,
		Message:       challenge.Message,
		ExpiresAt:     challenge.ExpiresAt,
	})
}

// Verify handles signature verification and wallet binding (step 2 of the
// SIWE flow). Requires the tenant/user identity headers.
func (h *WalletHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ChainID == 0 {
		req.ChainID = 1
	}
	if req.WalletType == "" {
		req.WalletType = "metamask"
	}

	tenantID, userID := identityFromContext(c)

	result, err := h.walletService.VerifyAndConnect(
		c.Request.Context(),
		tenantID, userID,
		req.WalletAddress, req.Signature, req.Nonce,
		req.ChainID, req.WalletType, req.Label,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"wallet": result.Wallet,
		"auth": authResponse{
			AccessToken:   result.Token,
			TokenType:     "bearer",
			ExpiresIn:     int64(result.Claims.ExpiresAt.Sub(result.Claims.IssuedAt).Seconds()),
			WalletAddress: result.Claims.Address,
			TenantID:      result.Claims.TenantID,
			UserID:        result.Claims.UserID,
			WalletID:      result.Claims.WalletID,
		},
	})
}

// Connections lists the user's wallet connections, primary first.
func (h *WalletHandlers) Connections(c *gin.Context) {
	tenantID, userID := identityFromContext(c)

	conns, err := h.walletService.ListWallets(c.Request.Context(), tenantID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	if conns == nil {
		conns = []*core.WalletConnection{}
	}
	c.JSON(http.StatusOK, conns)
}

// SetPrimary makes a wallet the user's primary connection.
func (h *WalletHandlers) SetPrimary(c *gin.Context) {
	var req setPrimaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	tenantID, userID := identityFromContext(c)

	if err := h.walletService.SetPrimary(c.Request.Context(), tenantID, userID, req.WalletID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "primary wallet updated"})
}

// Disconnect deletes a wallet connection.
func (h *WalletHandlers) Disconnect(c *gin.Context) {
	walletID := c.Param("wallet_id")

	tenantID, userID := identityFromContext(c)

	if err := h.walletService.Disconnect(c.Request.Context(), tenantID, userID, walletID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "wallet disconnected"})
}

// Me returns the claims of the presented wallet credential. The wallet
// auth middleware has already validated the token.
func (h *WalletHandlers) Me(c *gin.Context) {
	claims, exists := c.Get(credentialContextKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cred := claims.(*core.WalletCredential)
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":      cred.TenantID,
		"user_id":        cred.UserID,
		"wallet_id":      cred.WalletID,
		"wallet_address": cred.Address,
		"chain_id":       cred.ChainID,
		"expires_at":     cred.ExpiresAt,
	})
}

// respondError maps core sentinel errors to specific statuses with a code
// naming the failure kind. Anything unrecognized is a 500 with no detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address", "message": "invalid ethereum address"})
	case errors.Is(err, core.ErrNonceNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "nonce_not_found", "message": "nonce not found, request a new challenge"})
	case errors.Is(err, core.ErrNonceExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "nonce_expired", "message": "nonce expired, request a new challenge"})
	case errors.Is(err, core.ErrNonceUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "nonce_used", "message": "nonce already used, request a new challenge"})
	case errors.Is(err, core.ErrSignatureFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_signature", "message": "signature could not be decoded"})
	case errors.Is(err, core.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature", "message": "signature verification failed"})
	case errors.Is(err, core.ErrUserNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "user_not_found", "message": "user not found in tenant"})
	case errors.Is(err, core.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found", "message": "wallet connection not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "internal server error"})
	}
}
