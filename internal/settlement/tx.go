// Package settlement turns match events into signed exchange transactions
// and validates candidate transactions against the embedded orders and the
// history of prior matches.
package settlement

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
)

// ExchangeTransaction settles one fill: it embeds both counterpart orders
// and is signed by the matcher, forming a self-validating record.
type ExchangeTransaction struct {
	BuyOrder   *model.Order     `json:"order1"`
	SellOrder  *model.Order     `json:"order2"`
	Price      model.Price      `json:"price"`
	Amount     model.Amount     `json:"amount"`
	MatcherFee model.Amount     `json:"matcherFee"`
	Fee        model.Amount     `json:"fee"`
	Timestamp  int64            `json:"timestamp"`
	Signature  crypto.Signature `json:"signature"`
}

// BodyBytes is the canonical signable encoding: both orders length-prefixed,
// then the numeric fields, all big-endian.
func (tx *ExchangeTransaction) BodyBytes() []byte {
	b1 := tx.BuyOrder.Bytes()
	b2 := tx.SellOrder.Bytes()
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(b1)))
	writeUint32(&buf, uint32(len(b2)))
	buf.Write(b1)
	buf.Write(b2)
	writeUint64(&buf, uint64(tx.Price))
	writeUint64(&buf, uint64(tx.Amount))
	writeUint64(&buf, uint64(tx.MatcherFee))
	writeUint64(&buf, uint64(tx.Fee))
	writeUint64(&buf, uint64(tx.Timestamp))
	return buf.Bytes()
}

// Bytes is the wire form: body followed by the matcher signature.
func (tx *ExchangeTransaction) Bytes() []byte {
	body := tx.BodyBytes()
	out := make([]byte, 0, len(body)+crypto.SignatureSize)
	out = append(out, body...)
	out = append(out, tx.Signature[:]...)
	return out
}

// ExchangeTransactionFromBytes decodes the Bytes form.
func ExchangeTransactionFromBytes(b []byte) (*ExchangeTransaction, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("exchange tx: %d bytes is too short", len(b))
	}
	l1 := binary.BigEndian.Uint32(b[0:4])
	l2 := binary.BigEndian.Uint32(b[4:8])
	rest := b[8:]
	if uint64(len(rest)) < uint64(l1)+uint64(l2) {
		return nil, fmt.Errorf("exchange tx: order lengths %d+%d exceed payload", l1, l2)
	}
	buy, err := model.OrderFromBytes(rest[:l1])
	if err != nil {
		return nil, fmt.Errorf("exchange tx: buy order: %w", err)
	}
	sell, err := model.OrderFromBytes(rest[l1 : uint64(l1)+uint64(l2)])
	if err != nil {
		return nil, fmt.Errorf("exchange tx: sell order: %w", err)
	}
	tail := rest[uint64(l1)+uint64(l2):]
	if len(tail) != 5*8+crypto.SignatureSize {
		return nil, fmt.Errorf("exchange tx: unexpected tail of %d bytes", len(tail))
	}
	tx := &ExchangeTransaction{
		BuyOrder:   buy,
		SellOrder:  sell,
		Price:      model.Price(binary.BigEndian.Uint64(tail[0:8])),
		Amount:     model.Amount(binary.BigEndian.Uint64(tail[8:16])),
		MatcherFee: model.Amount(binary.BigEndian.Uint64(tail[16:24])),
		Fee:        model.Amount(binary.BigEndian.Uint64(tail[24:32])),
		Timestamp:  int64(binary.BigEndian.Uint64(tail[32:40])),
	}
	copy(tx.Signature[:], tail[40:])
	return tx, nil
}

// ID is the SHA-256 of the signable bytes.
func (tx *ExchangeTransaction) ID() crypto.Digest {
	return crypto.SHA256(tx.BodyBytes())
}

// Sign fills in the matcher signature.
func (tx *ExchangeTransaction) Sign(sk crypto.SecretKey) {
	tx.Signature = crypto.Sign(sk, tx.BodyBytes())
}

// VerifySignature checks the signature against the matcher key embedded in
// the buy order.
func (tx *ExchangeTransaction) VerifySignature() bool {
	return crypto.Verify(tx.BuyOrder.Matcher, tx.Signature, tx.BodyBytes())
}

// BalanceKey addresses one account's holding of one asset.
type BalanceKey struct {
	Account crypto.PublicKey
	Asset   model.Asset
}

// BalanceDiff maps accounts to signed balance deltas. The traded assets net
// to zero across accounts; the transaction fee leaves the projection toward
// the block producer.
type BalanceDiff map[BalanceKey]int64

func (d BalanceDiff) add(account crypto.PublicKey, asset model.Asset, delta int64) {
	d[BalanceKey{Account: account, Asset: asset}] += delta
}

// BalanceDiff projects the transaction onto account balance changes:
// both legs swap assets, both senders pay their proportional matcher fee,
// and the matcher nets its fee income against the transaction fee.
func (tx *ExchangeTransaction) BalanceDiff() (BalanceDiff, error) {
	cost, err := money.Cost(uint64(tx.Amount), uint64(tx.Price))
	if err != nil {
		return nil, err
	}
	buyFee, err := money.PartialFee(uint64(tx.BuyOrder.MatcherFee), uint64(tx.BuyOrder.Amount), uint64(tx.Amount))
	if err != nil {
		return nil, err
	}
	sellFee, err := money.PartialFee(uint64(tx.SellOrder.MatcherFee), uint64(tx.SellOrder.Amount), uint64(tx.Amount))
	if err != nil {
		return nil, err
	}

	pair := tx.BuyOrder.Pair
	matcher := tx.BuyOrder.Matcher
	diff := make(BalanceDiff)

	diff.add(tx.BuyOrder.Sender, pair.AmountAsset, int64(tx.Amount))
	diff.add(tx.BuyOrder.Sender, pair.PriceAsset, -int64(cost))
	diff.add(tx.SellOrder.Sender, pair.AmountAsset, -int64(tx.Amount))
	diff.add(tx.SellOrder.Sender, pair.PriceAsset, int64(cost))

	diff.add(tx.BuyOrder.Sender, tx.BuyOrder.FeeAsset, -int64(buyFee))
	diff.add(matcher, tx.BuyOrder.FeeAsset, int64(buyFee))
	diff.add(tx.SellOrder.Sender, tx.SellOrder.FeeAsset, -int64(sellFee))
	diff.add(matcher, tx.SellOrder.FeeAsset, int64(sellFee))

	// The matcher pays the transaction fee in the native asset.
	diff.add(matcher, model.NativeAsset, -int64(tx.Fee))
	return diff, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
