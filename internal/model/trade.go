package model

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single immutable fill reported by an exchange's trade stream.
type Trade struct {
	Price       float64
	Size        float64
	Side        Side
	TimestampMs int64
	Traders     map[string]struct{} // set<str>; nil or empty is valid
}

// HasTraders reports whether the trade carries any trader identities.
func (t *Trade) HasTraders() bool { return len(t.Traders) > 0 }
