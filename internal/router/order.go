package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Yusufzhafir/go-dexmatcher/internal/usecase/order"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/crypto"
	"github.com/Yusufzhafir/go-dexmatcher/pkg/model"
)

// OrderRouter serves submission, cancellation, status and depth.
type OrderRouter interface {
	Submit(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
	Depth(w http.ResponseWriter, r *http.Request)
}

type orderRouterImpl struct {
	drivers map[model.AssetPair]*order.Driver
}

func NewOrderRouter(drivers map[model.AssetPair]*order.Driver) OrderRouter {
	return &orderRouterImpl{drivers: drivers}
}

// SubmitOrderRequest is the wire form of an order plus the submission type.
// Monetary fields accept numbers or strings.
type SubmitOrderRequest struct {
	Version     byte             `json:"version"`
	Sender      string           `json:"sender"`
	Matcher     string           `json:"matcher"`
	AmountAsset string           `json:"amountAsset"`
	PriceAsset  string           `json:"priceAsset"`
	Side        model.Side       `json:"side"`
	Price       model.Uint64Flex `json:"price"`
	Amount      model.Uint64Flex `json:"amount"`
	Timestamp   int64            `json:"timestamp"`
	Expiration  int64            `json:"expiration"`
	MatcherFee  model.Uint64Flex `json:"matcherFee"`
	FeeAsset    string           `json:"feeAsset"`
	Signature   string           `json:"signature"`
	Type        string           `json:"type"` // "limit" (default) or "market"
}

type submitOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (req *SubmitOrderRequest) toOrder() (*model.Order, error) {
	sender, err := crypto.PublicKeyFromBase58(req.Sender)
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	matcher, err := crypto.PublicKeyFromBase58(req.Matcher)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}
	amountAsset, err := parseAsset(req.AmountAsset)
	if err != nil {
		return nil, fmt.Errorf("amountAsset: %w", err)
	}
	priceAsset, err := parseAsset(req.PriceAsset)
	if err != nil {
		return nil, fmt.Errorf("priceAsset: %w", err)
	}
	feeAsset, err := parseAsset(req.FeeAsset)
	if err != nil {
		return nil, fmt.Errorf("feeAsset: %w", err)
	}
	sig, err := crypto.SignatureFromBase58(req.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return &model.Order{
		Version:    req.Version,
		Sender:     sender,
		Matcher:    matcher,
		Pair:       model.AssetPair{AmountAsset: amountAsset, PriceAsset: priceAsset},
		Side:       req.Side,
		Price:      model.Price(req.Price),
		Amount:     model.Amount(req.Amount),
		Timestamp:  req.Timestamp,
		Expiration: req.Expiration,
		MatcherFee: model.Amount(req.MatcherFee),
		FeeAsset:   feeAsset,
		Signature:  sig,
	}, nil
}

func (or *orderRouterImpl) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[SubmitOrderRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	o, err := req.toOrder()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	d, ok := or.drivers[o.Pair]
	if !ok {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("no order book for pair %s", o.Pair))
		return
	}

	switch req.Type {
	case "", "limit":
		err = d.SubmitLimit(r.Context(), o)
	case "market":
		err = d.SubmitMarket(r.Context(), o)
	default:
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("unknown order type %q", req.Type))
		return
	}
	if err != nil {
		writeJSON(w, statusForError(err), submitOrderResponse{
			OrderID: o.ID().String(),
			Status:  "rejected",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, submitOrderResponse{
		OrderID: o.ID().String(),
		Status:  "accepted",
	})
}

func (or *orderRouterImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	d, ok := or.driverFromPath(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, errors.New("unknown pair"))
		return
	}
	id, err := crypto.DigestFromBase58(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("order id: %w", err))
		return
	}
	if err := d.Cancel(r.Context(), id); err != nil {
		writeJSONError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "orderId": id.String()})
}

func (or *orderRouterImpl) Status(w http.ResponseWriter, r *http.Request) {
	d, ok := or.driverFromPath(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, errors.New("unknown pair"))
		return
	}
	id, err := crypto.DigestFromBase58(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("order id: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, d.Status(id))
}

func (or *orderRouterImpl) Depth(w http.ResponseWriter, r *http.Request) {
	d, ok := or.driverFromPath(r)
	if !ok {
		writeJSONError(w, http.StatusNotFound, errors.New("unknown pair"))
		return
	}
	depth, err := d.Depth(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, depth)
}

func (or *orderRouterImpl) driverFromPath(r *http.Request) (*order.Driver, bool) {
	amountAsset, err := parseAsset(r.PathValue("amountAsset"))
	if err != nil {
		return nil, false
	}
	priceAsset, err := parseAsset(r.PathValue("priceAsset"))
	if err != nil {
		return nil, false
	}
	d, ok := or.drivers[model.AssetPair{AmountAsset: amountAsset, PriceAsset: priceAsset}]
	return d, ok
}

func parseAsset(s string) (model.Asset, error) {
	if s == "" || s == "native" {
		return model.NativeAsset, nil
	}
	id, err := crypto.DigestFromBase58(s)
	if err != nil {
		return model.Asset{}, err
	}
	return model.IssuedAsset(id), nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateOrder):
		return http.StatusConflict
	case errors.Is(err, model.ErrBalanceInsufficient),
		errors.Is(err, model.ErrOrderRejected),
		errors.Is(err, model.ErrInvalidAssetPair):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
