package portfolio

// Contract margin types.
const (
	ContractLinear  = "linear"  // USDT-margined
	ContractInverse = "inverse" // coin-margined
)

// ContractSpec describes one perpetual contract.
type ContractSpec struct {
	Symbol          string
	Type            string  // linear | inverse
	Multiplier      float64 // contract multiplier
	FundingInterval int64   // ms between funding settlements
	MMR             float64 // maintenance margin rate
}

// PerpSpecs is the default contract table. Callers may supply their own.
var PerpSpecs = map[string]ContractSpec{
	"BTCUSDT": {Symbol: "BTCUSDT", Type: ContractLinear, Multiplier: 1, FundingInterval: 8 * 3600 * 1000, MMR: 0.004},
	"ETHUSDT": {Symbol: "ETHUSDT", Type: ContractLinear, Multiplier: 1, FundingInterval: 8 * 3600 * 1000, MMR: 0.005},
	"XRPUSDT": {Symbol: "XRPUSDT", Type: ContractLinear, Multiplier: 1, FundingInterval: 8 * 3600 * 1000, MMR: 0.01},
}

// PositionValueUSD values a position in quote currency for margin purposes.
func PositionValueUSD(spec ContractSpec, qty, markPrice float64) float64 {
	if spec.Type == ContractInverse {
		return qty * spec.Multiplier / markPrice
	}
	return qty * markPrice * spec.Multiplier
}

// MaintenanceMarginUSD returns the maintenance margin requirement in quote
// currency.
func MaintenanceMarginUSD(spec ContractSpec, qty, markPrice float64) float64 {
	return absf(PositionValueUSD(spec, qty, markPrice)) * spec.MMR
}

// FundingProvider supplies the funding rate for a symbol at a settlement
// timestamp.
type FundingProvider interface {
	Rate(symbol string, ts int64) float64
}

// StaticFunding always returns the same rate.
type StaticFunding struct {
	RateValue float64
}

// Rate implements FundingProvider.
func (f StaticFunding) Rate(string, int64) float64 { return f.RateValue }
