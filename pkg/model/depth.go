package model

// LevelAgg is one aggregated price level: the sum of remaining amount-asset
// units resting at that price.
type LevelAgg struct {
	Price  Price  `json:"price"`
	Amount Amount `json:"amount"`
}

// MarketDepth represents the aggregated order book depth.
type MarketDepth struct {
	Bids      []LevelAgg `json:"bids"` // highest to lowest price
	Asks      []LevelAgg `json:"asks"` // lowest to highest price
	Timestamp int64      `json:"timestamp"`
}

// TopOfBook represents the best bid/ask levels.
type TopOfBook struct {
	BestBid *LevelAgg `json:"bestBid"`
	BestAsk *LevelAgg `json:"bestAsk"`
}
