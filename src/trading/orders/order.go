package orders

// An ExitOrder is one leg of a bracket as the execution gateway sees it.
// Take-profit legs go out as "limit", stop-loss legs as "stop".
type ExitOrder struct {
	Symbol      string  `json:"symbol" bson:"symbol"`
	Side        string  `json:"side"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type" bson:"type"`
	Price       float64 `json:"price,omitempty" bson:"price"`
	StopPrice   float64 `json:"stopPrice,omitempty" bson:"stopPrice"`
	ReduceOnly  *bool   `json:"reduceOnly,omitempty" bson:"reduceOnly"`
	TimeInForce string  `json:"timeInForce,omitempty" bson:"timeInForce"`
}
