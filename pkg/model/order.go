package model

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/money"
)

// Price is a fixed-point price scaled by money.PriceConstant.
type Price uint64

// Amount is an integer quantity in the smallest unit of an asset.
type Amount uint64

// Side is the order side.
type Side byte

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("invalid side %q", b)
	}
	return nil
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// MaxOrderLiveTime bounds Expiration-Timestamp, in milliseconds.
const MaxOrderLiveTime int64 = 30 * 24 * 60 * 60 * 1000

// Order is a signed instruction to trade on a pair. Immutable once built;
// the matcher tracks remainders on AcceptedOrder instead.
type Order struct {
	Version    byte             `json:"version"`
	Sender     crypto.PublicKey `json:"sender"`
	Matcher    crypto.PublicKey `json:"matcher"`
	Pair       AssetPair        `json:"-"`
	Side       Side             `json:"side"`
	Price      Price            `json:"price"`
	Amount     Amount           `json:"amount"`
	Timestamp  int64            `json:"timestamp"`
	Expiration int64            `json:"expiration"`
	MatcherFee Amount           `json:"matcherFee"`
	FeeAsset   Asset            `json:"feeAsset"`
	Signature  crypto.Signature `json:"signature"`
}

// BodyBytes is the canonical byte encoding the order is signed over and its
// id is derived from. All integers big-endian.
func (o *Order) BodyBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(o.Version)
	buf.Write(o.Sender[:])
	buf.Write(o.Matcher[:])
	o.Pair.AmountAsset.WriteTo(&buf)
	o.Pair.PriceAsset.WriteTo(&buf)
	buf.WriteByte(byte(o.Side))
	writeUint64(&buf, uint64(o.Price))
	writeUint64(&buf, uint64(o.Amount))
	writeUint64(&buf, uint64(o.Timestamp))
	writeUint64(&buf, uint64(o.Expiration))
	writeUint64(&buf, uint64(o.MatcherFee))
	o.FeeAsset.WriteTo(&buf)
	return buf.Bytes()
}

// Bytes is the full wire encoding: body followed by the signature.
func (o *Order) Bytes() []byte {
	body := o.BodyBytes()
	out := make([]byte, 0, len(body)+crypto.SignatureSize)
	out = append(out, body...)
	out = append(out, o.Signature[:]...)
	return out
}

// OrderFromBytes decodes the Bytes form.
func OrderFromBytes(b []byte) (*Order, error) {
	r := bytes.NewReader(b)
	var o Order
	var err error
	if o.Version, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("order: truncated version: %w", err)
	}
	if err = readFull(r, o.Sender[:]); err != nil {
		return nil, fmt.Errorf("order: truncated sender: %w", err)
	}
	if err = readFull(r, o.Matcher[:]); err != nil {
		return nil, fmt.Errorf("order: truncated matcher: %w", err)
	}
	if o.Pair.AmountAsset, err = readAsset(r); err != nil {
		return nil, fmt.Errorf("order: truncated amount asset: %w", err)
	}
	if o.Pair.PriceAsset, err = readAsset(r); err != nil {
		return nil, fmt.Errorf("order: truncated price asset: %w", err)
	}
	sideByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("order: truncated side: %w", err)
	}
	if sideByte > 1 {
		return nil, fmt.Errorf("order: invalid side byte %d", sideByte)
	}
	o.Side = Side(sideByte)
	var price, amount, ts, exp, fee uint64
	for _, f := range []*uint64{&price, &amount, &ts, &exp, &fee} {
		if err = binary.Read(r, binary.BigEndian, f); err != nil {
			return nil, fmt.Errorf("order: truncated numeric field: %w", err)
		}
	}
	o.Price = Price(price)
	o.Amount = Amount(amount)
	o.Timestamp = int64(ts)
	o.Expiration = int64(exp)
	o.MatcherFee = Amount(fee)
	if o.FeeAsset, err = readAsset(r); err != nil {
		return nil, fmt.Errorf("order: truncated fee asset: %w", err)
	}
	if err = readFull(r, o.Signature[:]); err != nil {
		return nil, fmt.Errorf("order: truncated signature: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("order: %d trailing bytes", r.Len())
	}
	return &o, nil
}

// ID is the SHA-256 of the canonical body bytes.
func (o *Order) ID() crypto.Digest {
	return crypto.SHA256(o.BodyBytes())
}

// Sign fills in the signature over the canonical body bytes.
func (o *Order) Sign(sk crypto.SecretKey) {
	o.Signature = crypto.Sign(sk, o.BodyBytes())
}

// VerifySignature checks the signature against the sender key.
func (o *Order) VerifySignature() bool {
	return crypto.Verify(o.Sender, o.Signature, o.BodyBytes())
}

// Validate checks the structural invariants of an order. Expiry against the
// current clock is the caller's concern.
func (o *Order) Validate() error {
	if err := o.Pair.Validate(); err != nil {
		return err
	}
	if err := money.CheckAmount(uint64(o.Amount)); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}
	if err := money.CheckPrice(uint64(o.Price)); err != nil {
		return fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}
	if o.Expiration <= o.Timestamp {
		return fmt.Errorf("%w: expiration %d not after timestamp %d", ErrOrderRejected, o.Expiration, o.Timestamp)
	}
	if o.Expiration-o.Timestamp > MaxOrderLiveTime {
		return fmt.Errorf("%w: lifetime %dms exceeds maximum %dms", ErrOrderRejected, o.Expiration-o.Timestamp, MaxOrderLiveTime)
	}
	return nil
}

// Expired reports whether the order is past its expiration at now (ms).
func (o *Order) Expired(now int64) bool {
	return o.Expiration <= now
}

// SpendAsset is the asset this order pays with.
func (o *Order) SpendAsset() Asset {
	if o.Side == Buy {
		return o.Pair.PriceAsset
	}
	return o.Pair.AmountAsset
}

// ReceiveAsset is the asset this order obtains.
func (o *Order) ReceiveAsset() Asset {
	if o.Side == Buy {
		return o.Pair.AmountAsset
	}
	return o.Pair.PriceAsset
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readFull(r *bytes.Reader, dst []byte) error {
	n, err := r.Read(dst)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("short read: %d of %d bytes", n, len(dst))
	}
	return nil
}
