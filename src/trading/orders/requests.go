package orders

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubmitOrderRequest struct {
	KeyId     *primitive.ObjectID `json:"keyId"`
	KeyParams ExitOrder           `json:"keyParams"`
}

type CancelOrderRequestParams struct {
	OrderId string `json:"id"`
	Symbol  string `json:"symbol"`
}

type CancelOrderRequest struct {
	KeyId     *primitive.ObjectID      `json:"keyId"`
	KeyParams CancelOrderRequestParams `json:"keyParams"`
}
