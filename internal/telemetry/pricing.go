package telemetry

// Rate is the price of one million tokens, split by direction.
type Rate struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// PriceTable maps model names to rates. Unknown models fall back to the
// default rate so cost is never silently zero.
type PriceTable struct {
	rates       map[string]Rate
	defaultRate Rate
}

func NewPriceTable(rates map[string]Rate, defaultRate Rate) *PriceTable {
	if rates == nil {
		rates = make(map[string]Rate)
	}
	return &PriceTable{rates: rates, defaultRate: defaultRate}
}

// RateFor returns the model's rate and whether the model was known.
func (t *PriceTable) RateFor(model string) (Rate, bool) {
	if rate, ok := t.rates[model]; ok {
		return rate, true
	}
	return t.defaultRate, false
}

// Cost returns the USD cost of a token count pair under the model's rate.
func (t *PriceTable) Cost(model string, inputTokens, outputTokens int) float64 {
	rate, _ := t.RateFor(model)
	return float64(inputTokens)/1e6*rate.InputPerMillion +
		float64(outputTokens)/1e6*rate.OutputPerMillion
}
