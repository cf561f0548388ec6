package orders

type OrderResponseData struct {
	OrderId string  `json:"orderId,string"`
	Msg     string  `json:"msg,string"`
	Status  string  `json:"status"`
	Type    string  `json:"type"`
	Price   float64 `json:"price"`
	Average float64 `json:"average"`
	Amount  float64 `json:"amount"`
	Filled  float64 `json:"filled"`
	Code    int64   `json:"code" bson:"code"`
}

type OrderResponse struct {
	Status string            `json:"status"`
	Data   OrderResponseData `json:"data"`
}

// Acked reports whether the gateway acknowledged the submission and returned
// a venue order id.
func (r OrderResponse) Acked() bool {
	return r.Status == "OK" && r.Data.OrderId != ""
}

type CancelOutcome int

const (
	CancelOK CancelOutcome = iota
	// CancelAlreadyClosed means the target was filled or cancelled before our
	// request landed. The venue can't roll back a fill, so callers treat this
	// as a successful no-op.
	CancelAlreadyClosed
	CancelTransient
)

// venue error code for "unknown order sent", returned when cancelling an
// order that is no longer on the book
const codeUnknownOrder = -2011

// ClassifyCancel maps a gateway cancel response onto the three outcomes the
// OCO logic distinguishes.
func ClassifyCancel(r OrderResponse) CancelOutcome {
	if r.Status == "OK" {
		return CancelOK
	}
	if r.Data.Status == "filled" || r.Data.Status == "canceled" {
		return CancelAlreadyClosed
	}
	if r.Data.Code == codeUnknownOrder {
		return CancelAlreadyClosed
	}
	return CancelTransient
}
