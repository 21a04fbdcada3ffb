package historical

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"marketcore/internal/model"
)

const binanceFuturesTestnetBase = "https://testnet.binancefuture.com"

// BinanceClient is the C8 binding backed by the real adshao/go-binance/v2
// futures REST client, grounded on the klines-fetch pattern used by the
// MooArnon time-series-rag-agent example (client.NewKlinesService()...Do(ctx)).
type BinanceClient struct {
	client *futures.Client
}

// NewBinanceClient builds a client for the given network ("main" or "test").
// No API key is required for public klines endpoints.
func NewBinanceClient(network string) *BinanceClient {
	c := futures.NewClient("", "")
	if network == "test" {
		c.BaseURL = binanceFuturesTestnetBase
	}
	return &BinanceClient{client: c}
}

// Snapshot implements model.HistoricalClient for Binance futures. Binance's
// interval strings ("1m", "5m", "30m", "1h", "1d", "1w") are identical to
// model.Interval's own string values, so no translation table is needed.
func (b *BinanceClient) Snapshot(ctx context.Context, market model.Market, interval model.Interval, startMs, endMs int64) ([]model.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(string(market)).
		Interval(string(interval)).
		StartTime(startMs).
		EndTime(endMs).
		Do(ctx)
	if err != nil {
		return nil, wrapErr(model.ExchangeBinance, market, interval, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		open, err1 := strconv.ParseFloat(k.Open, 64)
		high, err2 := strconv.ParseFloat(k.High, 64)
		low, err3 := strconv.ParseFloat(k.Low, 64)
		close, err4 := strconv.ParseFloat(k.Close, 64)
		vol, err5 := strconv.ParseFloat(k.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, model.Candle{
			OpenTimeMs: k.OpenTime,
			Open:       open,
			High:       high,
			Low:        low,
			Close:      close,
			Volume:     vol,
		})
	}

	sortByOpenTime(candles)
	return candles, nil
}
