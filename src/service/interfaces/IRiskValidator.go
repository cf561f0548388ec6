package interfaces

const (
	RiskAccept = "accept"
	RiskAdjust = "adjust"
	RiskReject = "reject"
)

// A RiskValidation is the verdict for a proposed stop placement. On RiskAdjust
// the StopLossPrice carries the tightened stop, moved toward entry only.
type RiskValidation struct {
	Decision      string  `json:"decision"`
	StopLossPrice float64 `json:"stopLossPrice,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

type IRiskValidator interface {
	Validate(symbol string, entryPrice float64, stopLossPrice float64, quantity float64) RiskValidation
	SuggestQuantity(entryPrice float64, stopLossPrice float64) float64
}
