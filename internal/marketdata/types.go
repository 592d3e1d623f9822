package marketdata

// Snapshot is one token's header view from the markets endpoint
type Snapshot struct {
	CoinID    string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"current_price"`
	Change24h float64 `json:"price_change_percentage_24h"`
}

// PricePoint is one (timestamp, value) sample from the history endpoint.
// Timestamps are unix milliseconds, as the provider returns them.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// History is the chart series for one coin: prices plus traded volumes
type History struct {
	Prices  []PricePoint `json:"prices"`
	Volumes []PricePoint `json:"volumes"`
}

// marketChartResponse mirrors the provider's market_chart wire format
type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// coinIDs maps supported token symbols to provider coin identifiers
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"ADA":   "cardano",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
}

// CoinID resolves a token symbol to the provider's coin identifier,
// defaulting to bitcoin for unknown symbols
func CoinID(symbol string) string {
	if id, ok := coinIDs[symbol]; ok {
		return id
	}
	return "bitcoin"
}
