// Package historical implements C8: one model.HistoricalClient binding per
// exchange, used by the trade interpreter (C4) to back-fill a candle series
// on bootstrap (§4.4.1).
package historical

import (
	"fmt"

	"marketcore/internal/model"
)

// sortByOpenTime is a tiny insertion sort used by both bindings to guarantee
// the oldest-first ordering model.HistoricalClient promises, regardless of
// what order the upstream API happens to return rows in.
func sortByOpenTime(rows []model.Candle) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].OpenTimeMs < rows[j-1].OpenTimeMs; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func wrapErr(exchange model.Exchange, market model.Market, interval model.Interval, err error) error {
	return fmt.Errorf("historical: %s %s %s: %w", exchange.Lower(), market.Lower(), interval, err)
}
