package http

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/finsight/walletauth/adapters/events"
	"github.com/finsight/walletauth/adapters/siwe"
	"github.com/finsight/walletauth/adapters/store"
	"github.com/finsight/walletauth/adapters/tokenizer"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	wallets *store.MemoryWalletStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := core.SystemClock{}
	builder := siwe.NewChallengeBuilder("", "", "", 1, 5*time.Minute, clock)

	users := store.NewMemoryUserStore()
	users.Add(&core.User{ID: "u1", TenantID: "t1", Email: "u1@example.com"})

	wallets := store.NewMemoryWalletStore(clock)
	svc := service.NewWalletService(
		store.NewMemoryNonceStore(builder, clock),
		wallets,
		users,
		tokenizer.NewJWTTokenizer([]byte("test-secret"), 24*time.Hour, clock),
		events.NewNopPublisher(),
	)
	return &testServer{router: SetupRouter(svc), wallets: wallets}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

var identity = map[string]string{
	HeaderTenantID: "t1",
	HeaderUserID:   "u1",
}

func newWallet(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, msg string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

// connect completes nonce+verify over HTTP, returning the verify body.
func (s *testServer) connect(t *testing.T, key *ecdsa.PrivateKey, address string) map[string]json.RawMessage {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{"wallet_address": address}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var challenge struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}
	decode(t, rec, &challenge)

	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      signMessage(t, key, challenge.Message),
		"nonce":          challenge.Nonce,
	}, identity)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	decode(t, rec, &body)
	return body
}

func TestNonceEndpoint(t *testing.T) {
	s := newTestServer(t)
	_, address := newWallet(t)

	rec := s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{"wallet_address": address}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		WalletAddress string    `json:"wallet_address"`
		Nonce         string    `json:"nonce"`
		Message       string    `json:"message"`
		ExpiresAt     time.Time `json:"expires_at"`
	}
	decode(t, rec, &body)

	assert.Equal(t, address, body.WalletAddress)
	assert.Len(t, body.Nonce, 43)
	assert.Contains(t, body.Message, address)
	assert.Contains(t, body.Message, "Nonce: "+body.Nonce)
	assert.True(t, body.ExpiresAt.After(time.Now()))
}

func TestNonceEndpointRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{"wallet_address": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "invalid_address", body["error"])
}

func TestVerifyEndpoint(t *testing.T) {
	s := newTestServer(t)
	key, address := newWallet(t)

	body := s.connect(t, key, address)

	var wallet core.WalletConnection
	require.NoError(t, json.Unmarshal(body["wallet"], &wallet))
	assert.Equal(t, address, wallet.Address)
	assert.True(t, wallet.IsPrimary)
	assert.Equal(t, int64(1), wallet.ChainID)
	assert.Equal(t, "metamask", wallet.WalletKind)

	var auth struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		WalletID    string `json:"wallet_id"`
	}
	require.NoError(t, json.Unmarshal(body["auth"], &auth))
	assert.NotEmpty(t, auth.AccessToken)
	assert.Equal(t, "bearer", auth.TokenType)
	assert.Equal(t, int64(24*3600), auth.ExpiresIn)
	assert.Equal(t, wallet.ID, auth.WalletID)
}

func TestVerifyRequiresIdentityHeaders(t *testing.T) {
	s := newTestServer(t)
	_, address := newWallet(t)

	rec := s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      "0x00",
		"nonce":          "n",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "missing_identity", body["error"])

	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      "0x00",
		"nonce":          "n",
	}, map[string]string{HeaderTenantID: "t1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	key, address := newWallet(t)
	otherKey, _ := newWallet(t)

	rec := s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{"wallet_address": address}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var challenge struct {
		Nonce   string `json:"nonce"`
		Message string `json:"message"`
	}
	decode(t, rec, &challenge)

	// Unknown nonce.
	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      signMessage(t, key, challenge.Message),
		"nonce":          "bogus",
	}, identity)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Undecodable signature.
	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      "not-hex",
		"nonce":          challenge.Nonce,
	}, identity)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "malformed_signature", body["error"])

	// The malformed signature burnt the nonce; mint a fresh challenge.
	rec = s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{"wallet_address": address}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &challenge)

	// Wrong signer.
	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      signMessage(t, otherKey, challenge.Message),
		"nonce":          challenge.Nonce,
	}, identity)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "invalid_signature", body["error"])

	// Replay of the burnt nonce.
	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      signMessage(t, key, challenge.Message),
		"nonce":          challenge.Nonce,
	}, identity)
	assert.Equal(t, http.StatusConflict, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "nonce_used", body["error"])

	// Unknown user in tenant.
	rec = s.do(t, http.MethodPost, "/api/wallet/nonce", gin.H{"wallet_address": address}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &challenge)
	rec = s.do(t, http.MethodPost, "/api/wallet/verify", gin.H{
		"wallet_address": address,
		"signature":      signMessage(t, key, challenge.Message),
		"nonce":          challenge.Nonce,
	}, map[string]string{HeaderTenantID: "t1", HeaderUserID: "ghost"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, "user_not_found", body["error"])
}

func TestConnectionsListPrimaryFirst(t *testing.T) {
	s := newTestServer(t)

	key1, addr1 := newWallet(t)
	s.connect(t, key1, addr1)
	key2, addr2 := newWallet(t)
	s.connect(t, key2, addr2)

	rec := s.do(t, http.MethodGet, "/api/wallet/connections", nil, identity)
	require.Equal(t, http.StatusOK, rec.Code)

	var conns []core.WalletConnection
	decode(t, rec, &conns)
	require.Len(t, conns, 2)
	assert.Equal(t, addr1, conns[0].Address)
	assert.True(t, conns[0].IsPrimary)
	assert.False(t, conns[1].IsPrimary)
}

func TestConnectionsEmptyList(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/wallet/connections", nil, identity)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestSetPrimaryEndpoint(t *testing.T) {
	s := newTestServer(t)

	key1, addr1 := newWallet(t)
	s.connect(t, key1, addr1)
	key2, addr2 := newWallet(t)
	body := s.connect(t, key2, addr2)

	var second core.WalletConnection
	require.NoError(t, json.Unmarshal(body["wallet"], &second))

	rec := s.do(t, http.MethodPost, "/api/wallet/set-primary", gin.H{"wallet_id": second.ID}, identity)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/wallet/connections", nil, identity)
	var conns []core.WalletConnection
	decode(t, rec, &conns)
	require.Len(t, conns, 2)
	assert.Equal(t, second.ID, conns[0].ID)
	assert.True(t, conns[0].IsPrimary)

	rec = s.do(t, http.MethodPost, "/api/wallet/set-primary", gin.H{"wallet_id": "missing"}, identity)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisconnectEndpoint(t *testing.T) {
	s := newTestServer(t)
	key, address := newWallet(t)

	body := s.connect(t, key, address)
	var wallet core.WalletConnection
	require.NoError(t, json.Unmarshal(body["wallet"], &wallet))

	rec := s.do(t, http.MethodDelete, "/api/wallet/connections/"+wallet.ID, nil, identity)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/wallet/connections/"+wallet.ID, nil, identity)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Another user cannot reach this user's wallets.
	body2 := s.connect(t, key, address)
	require.NoError(t, json.Unmarshal(body2["wallet"], &wallet))
	rec = s.do(t, http.MethodDelete, "/api/wallet/connections/"+wallet.ID, nil, map[string]string{
		HeaderTenantID: "t1",
		HeaderUserID:   "u2",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	s := newTestServer(t)
	key, address := newWallet(t)

	body := s.connect(t, key, address)
	var auth struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(body["auth"], &auth))

	rec := s.do(t, http.MethodGet, "/api/wallet/me", nil, map[string]string{
		"Authorization": "Bearer " + auth.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		TenantID      string `json:"tenant_id"`
		UserID        string `json:"user_id"`
		WalletAddress string `json:"wallet_address"`
		ChainID       int64  `json:"chain_id"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "t1", me.TenantID)
	assert.Equal(t, "u1", me.UserID)
	assert.Equal(t, address, me.WalletAddress)
	assert.Equal(t, int64(1), me.ChainID)
}

func TestMeRejectsBadTokens(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/wallet/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/wallet/me", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "invalid_token", body["error"])
}
