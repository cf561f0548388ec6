package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// A MongoBracket is the persistent form of a bracket order: one filled entry
// guarded by a take-profit and a stop-loss leg with one-cancels-other
// semantics emulated on top of the venue.
type MongoBracket struct {
	ID            *primitive.ObjectID `json:"_id" bson:"_id"`
	ParentOrderId string              `json:"parentOrderId" bson:"parentOrderId"`
	Symbol        string              `json:"symbol" bson:"symbol"`
	Side          string              `json:"side" bson:"side"` // entry side, "buy" or "sell"

	Quantity        float64 `json:"quantity" bson:"quantity"`
	EntryPrice      float64 `json:"entryPrice" bson:"entryPrice"`
	TakeProfitPrice float64 `json:"takeProfitPrice" bson:"takeProfitPrice"`
	StopLossPrice   float64 `json:"stopLossPrice" bson:"stopLossPrice"`
	RiskRewardRatio float64 `json:"riskRewardRatio" bson:"riskRewardRatio"`
	ATRValue        float64 `json:"atrValue" bson:"atrValue"`

	// Leg ids are either both set or both empty except for the short window
	// inside the two-phase placement.
	TakeProfitOrderId string `json:"takeProfitOrderId,omitempty" bson:"takeProfitOrderId"`
	StopLossOrderId   string `json:"stopLossOrderId,omitempty" bson:"stopLossOrderId"`

	Status       string  `json:"status" bson:"status"`
	FilledQty    float64 `json:"filledQty,omitempty" bson:"filledQty"`
	ExitPrice    float64 `json:"exitPrice,omitempty" bson:"exitPrice"`
	RealizedPnl  float64 `json:"realizedPnl,omitempty" bson:"realizedPnl"`
	ErrorMessage string  `json:"errorMessage,omitempty" bson:"errorMessage"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt"`
}

// SiblingOf returns the other leg's order id, or empty string when the id
// given is not a leg of this bracket.
func (b *MongoBracket) SiblingOf(orderId string) string {
	switch orderId {
	case b.TakeProfitOrderId:
		return b.StopLossOrderId
	case b.StopLossOrderId:
		return b.TakeProfitOrderId
	}
	return ""
}

// HasLeg reports whether the order id given belongs to this bracket.
func (b *MongoBracket) HasLeg(orderId string) bool {
	return orderId != "" && (orderId == b.TakeProfitOrderId || orderId == b.StopLossOrderId)
}

type MongoBracketUpdateEvent struct {
	FullDocument MongoBracket `json:"fullDocument" bson:"fullDocument"`
}

// A MongoOrder mirrors the execution gateway's order document. The order
// watch delivers these on status changes.
type MongoOrder struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Status    string             `json:"status,omitempty" bson:"status"`
	OrderId   string             `json:"id,omitempty" bson:"id"`
	Filled    float64            `json:"filled,omitempty" bson:"filled"`
	Amount    float64            `json:"amount,omitempty" bson:"amount"`
	Average   float64            `json:"average,omitempty" bson:"average"`
	Side      string             `json:"side,omitempty" bson:"side"`
	Type      string             `json:"type,omitempty" bson:"type"`
	Symbol    string             `json:"symbol,omitempty" bson:"symbol"`
	Price     float64            `json:"price,omitempty" bson:"price"`
	StopPrice float64            `json:"stopPrice,omitempty" bson:"stopPrice"`
	Timestamp float64            `json:"timestamp,omitempty" bson:"timestamp"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty" bson:"updatedAt"`
}

type MongoOrderUpdateEvent struct {
	FullDocument MongoOrder `json:"fullDocument" bson:"fullDocument"`
}
