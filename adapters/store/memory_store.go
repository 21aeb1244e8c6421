package store

import (
	"context"
	"sort"
	"sync"

	"github.com/finsight/walletauth/adapters/siwe"
	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/ports"
	"github.com/google/uuid"
)

// MemoryNonceStore is an in-memory NonceStore, primarily for tests.
type MemoryNonceStore struct {
	builder *siwe.ChallengeBuilder
	clock   core.Clock

	mu     sync.Mutex
	byAddr map[string]*core.Challenge
}

// NewMemoryNonceStore creates an in-memory nonce store.
func NewMemoryNonceStore(builder *siwe.ChallengeBuilder, clock core.Clock) *MemoryNonceStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &MemoryNonceStore{
		builder: builder,
		clock:   clock,
		byAddr:  make(map[string]*core.Challenge),
	}
}

// GetOrCreate implements ports.NonceStore.
func (s *MemoryNonceStore) GetOrCreate(ctx context.Context, address string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byAddr[address]; ok {
		if !existing.Used && !existing.Expired(s.clock.Now()) {
			copied := *existing
			return &copied, nil
		}
		delete(s.byAddr, address)
	}

	challenge, err := s.builder.Generate(address)
	if err != nil {
		return nil, err
	}

	stored := *challenge
	s.byAddr[address] = &stored
	return challenge, nil
}

// Consume implements ports.NonceStore. The store mutex serializes the
// check-and-set, matching the database adapters' conditional update.
func (s *MemoryNonceStore) Consume(ctx context.Context, address, nonce string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.byAddr[address]
	if !ok || challenge.Nonce != nonce {
		return nil, core.ErrNonceNotFound
	}
	if challenge.Used {
		return nil, core.ErrNonceUsed
	}
	if challenge.Expired(s.clock.Now()) {
		return nil, core.ErrNonceExpired
	}

	challenge.Used = true
	copied := *challenge
	return &copied, nil
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// MemoryWalletStore is an in-memory WalletStore, primarily for tests.
type MemoryWalletStore struct {
	clock core.Clock

	mu    sync.Mutex
	conns map[string]*core.WalletConnection // keyed by connection ID
}

// NewMemoryWalletStore creates an in-memory wallet registry.
func NewMemoryWalletStore(clock core.Clock) *MemoryWalletStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &MemoryWalletStore{
		clock: clock,
		conns: make(map[string]*core.WalletConnection),
	}
}

// Upsert implements ports.WalletStore.
func (s *MemoryWalletStore) Upsert(ctx context.Context, conn *core.WalletConnection) (*core.WalletConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	for _, existing := range s.conns {
		if existing.TenantID == conn.TenantID && existing.UserID == conn.UserID &&
			existing.Address == conn.Address && existing.ChainID == conn.ChainID {
			existing.VerifiedAt = now
			existing.LastUsedAt = now
			existing.WalletKind = conn.WalletKind
			if conn.Label != "" {
				existing.Label = conn.Label
			}
			copied := *existing
			return &copied, nil
		}
	}

	first := true
	for _, existing := range s.conns {
		if existing.TenantID == conn.TenantID && existing.UserID == conn.UserID {
			first = false
			break
		}
	}

	label := conn.Label
	if label == "" {
		label = defaultLabel(conn.WalletKind)
	}
	metadata := conn.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	created := &core.WalletConnection{
		ID:         uuid.NewString(),
		TenantID:   conn.TenantID,
		UserID:     conn.UserID,
		Address:    conn.Address,
		ChainID:    conn.ChainID,
		WalletKind: conn.WalletKind,
		Label:      label,
		IsPrimary:  first,
		VerifiedAt: now,
		LastUsedAt: now,
		CreatedAt:  now,
		Metadata:   metadata,
	}
	s.conns[created.ID] = created

	copied := *created
	return &copied, nil
}

// List implements ports.WalletStore.
func (s *MemoryWalletStore) List(ctx context.Context, tenantID, userID string) ([]*core.WalletConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.WalletConnection
	for _, conn := range s.conns {
		if conn.TenantID == tenantID && conn.UserID == userID {
			copied := *conn
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// SetPrimary implements ports.WalletStore.
func (s *MemoryWalletStore) SetPrimary(ctx context.Context, tenantID, userID, walletID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.conns[walletID]
	if !ok || target.TenantID != tenantID || target.UserID != userID {
		return false, nil
	}

	for _, conn := range s.conns {
		if conn.TenantID == tenantID && conn.UserID == userID {
			conn.IsPrimary = false
		}
	}
	target.IsPrimary = true
	return true, nil
}

// Delete implements ports.WalletStore.
func (s *MemoryWalletStore) Delete(ctx context.Context, tenantID, userID, walletID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.conns[walletID]
	if !ok || target.TenantID != tenantID || target.UserID != userID {
		return false, nil
	}

	delete(s.conns, walletID)
	return true, nil
}

var _ ports.WalletStore = (*MemoryWalletStore)(nil)

// MemoryUserStore is an in-memory UserStore, primarily for tests.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*core.User // keyed by tenantID + "/" + userID
}

// NewMemoryUserStore creates an in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*core.User)}
}

// Add registers a user so verification can find it.
func (s *MemoryUserStore) Add(user *core.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.TenantID+"/"+user.ID] = user
}

// Get implements ports.UserStore.
func (s *MemoryUserStore) Get(ctx context.Context, tenantID, userID string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[tenantID+"/"+userID]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

var _ ports.UserStore = (*MemoryUserStore)(nil)
