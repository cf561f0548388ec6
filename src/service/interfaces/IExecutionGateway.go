package interfaces

import (
	"github.com/Taamir-Ransome/grodt/src/trading/orders"
)

// IExecutionGateway is the boundary to the venue-facing execution service.
type IExecutionGateway interface {
	SubmitOrder(request orders.SubmitOrderRequest) orders.OrderResponse
	CancelOrder(request orders.CancelOrderRequest) orders.OrderResponse
}
