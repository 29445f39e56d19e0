// Package ledger bridges the matcher to its double-entry balance store. The
// TigerBeetle client serves tradable-balance snapshots at submission entry
// and applies settlement balance deltas as transfer batches.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/Yusufzhafir/go-dexmatcher/internal/settlement"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/rs/zerolog"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

// Transfer code recorded on settlement movements.
const codeTrade uint16 = 3001

// BalanceSource is the tradable-balance oracle the submission driver
// snapshots before matching.
type BalanceSource interface {
	TradableBalance(ctx context.Context, account crypto.PublicKey, asset model.Asset) (model.Amount, error)
}

// TigerBeetle implements BalanceSource and settlement application on a
// TigerBeetle cluster.
type TigerBeetle struct {
	client   tb.Client
	ledgerID uint32
	log      zerolog.Logger
}

func NewTigerBeetle(client tb.Client, ledgerID uint32, log zerolog.Logger) *TigerBeetle {
	return &TigerBeetle{
		client:   client,
		ledgerID: ledgerID,
		log:      log.With().Str("component", "ledger").Logger(),
	}
}

// AccountID derives the 128-bit ledger account for an account/asset pair
// from the hash of both, so account creation stays deterministic across
// nodes.
func AccountID(account crypto.PublicKey, asset model.Asset) tbtypes.Uint128 {
	assetTag := make([]byte, 0, crypto.DigestSize+1)
	if asset.Present {
		assetTag = append(assetTag, 1)
		assetTag = append(assetTag, asset.ID[:]...)
	} else {
		assetTag = append(assetTag, 0)
	}
	h := crypto.SHA256(account[:], assetTag)
	bi := new(big.Int).SetBytes(h[:16])
	return tbtypes.BigIntToUint128(*bi)
}

// clearingAccount is the per-asset escrow leg every settlement transfer
// moves through.
func clearingAccount(asset model.Asset) tbtypes.Uint128 {
	return AccountID(crypto.PublicKey{}, asset)
}

// TradableBalance reads the posted credit minus debit balance of the
// account for the asset. Missing accounts read as zero.
func (l *TigerBeetle) TradableBalance(_ context.Context, account crypto.PublicKey, asset model.Asset) (model.Amount, error) {
	id := AccountID(account, asset)
	accounts, err := l.client.LookupAccounts([]tbtypes.Uint128{id})
	if err != nil {
		return 0, fmt.Errorf("ledger: lookup account: %w", err)
	}
	if len(accounts) == 0 {
		return 0, nil
	}
	credits := accounts[0].CreditsPosted.BigInt()
	debits := accounts[0].DebitsPosted.BigInt()
	net := new(big.Int).Sub(&credits, &debits)
	if net.Sign() <= 0 {
		return 0, nil
	}
	if !net.IsUint64() {
		return model.Amount(^uint64(0)), nil
	}
	return model.Amount(net.Uint64()), nil
}

// ApplySettlement posts one transfer per balance delta, routed through the
// per-asset clearing account. Deltas are applied in a deterministic order.
func (l *TigerBeetle) ApplySettlement(_ context.Context, diff settlement.BalanceDiff) error {
	keys := make([]settlement.BalanceKey, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Account != keys[j].Account {
			return keys[i].Account.String() < keys[j].Account.String()
		}
		return keys[i].Asset.String() < keys[j].Asset.String()
	})

	transfers := make([]tbtypes.Transfer, 0, len(keys))
	for _, k := range keys {
		delta := diff[k]
		if delta == 0 {
			continue
		}
		t := tbtypes.Transfer{
			ID:     tbtypes.ID(),
			Ledger: l.ledgerID,
			Code:   codeTrade,
		}
		if delta > 0 {
			t.DebitAccountID = clearingAccount(k.Asset)
			t.CreditAccountID = AccountID(k.Account, k.Asset)
			t.Amount = tbtypes.ToUint128(uint64(delta))
		} else {
			t.DebitAccountID = AccountID(k.Account, k.Asset)
			t.CreditAccountID = clearingAccount(k.Asset)
			t.Amount = tbtypes.ToUint128(uint64(-delta))
		}
		transfers = append(transfers, t)
	}
	if len(transfers) == 0 {
		return nil
	}
	results, err := l.client.CreateTransfers(transfers)
	if err != nil {
		return fmt.Errorf("ledger: create transfers: %w", err)
	}
	if len(results) > 0 {
		return fmt.Errorf("ledger: %d transfers rejected: %+v", len(results), results)
	}
	l.log.Debug().Int("transfers", len(transfers)).Msg("settlement applied")
	return nil
}
