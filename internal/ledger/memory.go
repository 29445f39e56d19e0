package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yusufzhafir/go-dexmatcher/internal/settlement"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
)

// InMemory is a map-backed BalanceSource for tests and single-node runs
// without a TigerBeetle cluster.
type InMemory struct {
	mu       sync.RWMutex
	balances map[settlement.BalanceKey]uint64
}

func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[settlement.BalanceKey]uint64)}
}

// Set overwrites one balance.
func (m *InMemory) Set(account crypto.PublicKey, asset model.Asset, amount model.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[settlement.BalanceKey{Account: account, Asset: asset}] = uint64(amount)
}

func (m *InMemory) TradableBalance(_ context.Context, account crypto.PublicKey, asset model.Asset) (model.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return model.Amount(m.balances[settlement.BalanceKey{Account: account, Asset: asset}]), nil
}

// ApplySettlement applies a balance diff atomically, rejecting any movement
// that would drive a balance negative.
func (m *InMemory) ApplySettlement(_ context.Context, diff settlement.BalanceDiff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, delta := range diff {
		if delta < 0 && m.balances[k] < uint64(-delta) {
			return fmt.Errorf("%w: %s has %d of %s, needs %d",
				model.ErrBalanceInsufficient, k.Account, m.balances[k], k.Asset, -delta)
		}
	}
	for k, delta := range diff {
		if delta >= 0 {
			m.balances[k] += uint64(delta)
		} else {
			m.balances[k] -= uint64(-delta)
		}
	}
	return nil
}
