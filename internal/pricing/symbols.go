package pricing

import "strings"

// symbolToID maps common exchange ticker symbols to the market-data
// service's canonical coin identifiers. Symbols absent from the table are
// passed through lower-cased as a best-effort fallback.
var symbolToID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"POL":   "matic-network",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"LTC":   "litecoin",
	"ATOM":  "cosmos",
	"NEAR":  "near",
	"APT":   "aptos",
	"ARB":   "arbitrum",
	"OP":    "optimism",
	"TON":   "the-open-network",
	"TRX":   "tron",
	"SHIB":  "shiba-inu",
	"PEPE":  "pepe",
	"SUI":   "sui",
	"INJ":   "injective-protocol",
	"FIL":   "filecoin",
	"AXS":   "axie-infinity",
	"SAND":  "the-sandbox",
	"CAKE":  "pancakeswap-token",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"DAI":   "dai",
}

// CoinID translates an exchange ticker to the service's canonical coin ID.
func CoinID(symbol string) string {
	sym := normalizeSymbol(symbol)
	if id, ok := symbolToID[sym]; ok {
		return id
	}
	return strings.ToLower(sym)
}

// normalizeSymbol upper-cases and trims a ticker for use as a map key.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
