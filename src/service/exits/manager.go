package exits

import (
	"errors"
	"fmt"
	"time"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	"github.com/Taamir-Ransome/grodt/src/trading/orders"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// A ParentFill describes the filled entry order a bracket protects.
type ParentFill struct {
	ParentOrderId string  `json:"parentOrderId"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	EntryPrice    float64 `json:"entryPrice"`
}

// exitSide returns the side both exit legs trade on, opposite the entry.
func exitSide(entrySide string) string {
	if entrySide == "sell" {
		return "buy"
	}
	return "sell"
}

// A BracketManager builds bracket documents and runs the two-phase leg
// placement against the execution gateway. Once both legs are live the
// coordinator owns the bracket.
type BracketManager struct {
	Gateway     interfaces.IExecutionGateway
	Store       interfaces.IBracketStore
	Dispatcher  *EventDispatcher
	Coordinator *Coordinator
	KeyId       *primitive.ObjectID
	Statsd      interfaces.IStatsClient
	Log         interfaces.ILogger
}

func NewBracketManager(gateway interfaces.IExecutionGateway, store interfaces.IBracketStore, dispatcher *EventDispatcher, coordinator *Coordinator, keyId *primitive.ObjectID, statsd interfaces.IStatsClient, log interfaces.ILogger) *BracketManager {
	return &BracketManager{
		Gateway:     gateway,
		Store:       store,
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		KeyId:       keyId,
		Statsd:      statsd,
		Log:         log,
	}
}

// CreateBracketOrder validates the inputs and builds the pending bracket
// document. It touches nothing outside its return value; placement and
// persistence happen in PlaceBracketOrders.
func (bm *BracketManager) CreateBracketOrder(fill ParentFill, levels ExitLevels, effectiveRatio float64) (*models.MongoBracket, error) {
	if fill.Quantity <= 0 {
		return nil, fmt.Errorf("bracket quantity must be positive, got %v", fill.Quantity)
	}
	if fill.EntryPrice <= 0 {
		return nil, fmt.Errorf("bracket entry price must be positive, got %v", fill.EntryPrice)
	}
	if fill.Side != "buy" && fill.Side != "sell" {
		return nil, fmt.Errorf("unknown entry side %q", fill.Side)
	}
	if levels.StopLoss <= 0 || levels.TakeProfit <= 0 {
		return nil, errors.New("exit levels must be positive")
	}
	if fill.Side == "buy" && levels.StopLoss >= fill.EntryPrice {
		return nil, fmt.Errorf("buy bracket stop %v not below entry %v", levels.StopLoss, fill.EntryPrice)
	}
	if fill.Side == "sell" && levels.StopLoss <= fill.EntryPrice {
		return nil, fmt.Errorf("sell bracket stop %v not above entry %v", levels.StopLoss, fill.EntryPrice)
	}

	id := primitive.NewObjectID()
	bracket := &models.MongoBracket{
		ID:              &id,
		ParentOrderId:   fill.ParentOrderId,
		Symbol:          fill.Symbol,
		Side:            fill.Side,
		Quantity:        fill.Quantity,
		EntryPrice:      fill.EntryPrice,
		TakeProfitPrice: levels.TakeProfit,
		StopLossPrice:   levels.StopLoss,
		RiskRewardRatio: effectiveRatio,
		ATRValue:        levels.ATR,
		Status:          Pending,
		CreatedAt:       time.Now().UTC(),
	}
	return bracket, nil
}

// PlaceBracketOrders persists the bracket and submits both exit legs, the
// take-profit first. A failed second leg triggers a compensating cancel of
// the first so the venue never ends up with a lone live leg. On success the
// bracket goes Active and is handed to the coordinator.
func (bm *BracketManager) PlaceBracketOrders(bracket *models.MongoBracket) error {
	bm.Store.SaveBracket(bracket)
	bm.Dispatcher.Emit(EventBracketCreated, bracket)
	bm.Statsd.Inc("bracket.create")

	reduceOnly := true
	side := exitSide(bracket.Side)

	tpResponse := bm.Gateway.SubmitOrder(orders.SubmitOrderRequest{
		KeyId: bm.KeyId,
		KeyParams: orders.ExitOrder{
			Symbol:     bracket.Symbol,
			Side:       side,
			Amount:     bracket.Quantity,
			Type:       "limit",
			Price:      bracket.TakeProfitPrice,
			ReduceOnly: &reduceOnly,
		},
	})
	if !tpResponse.Acked() {
		bm.failPlacement(bracket, fmt.Sprintf("take profit leg rejected: %v", tpResponse.Data.Msg))
		return fmt.Errorf("take profit leg rejected: %v", tpResponse.Data.Msg)
	}
	bracket.TakeProfitOrderId = tpResponse.Data.OrderId

	slResponse := bm.Gateway.SubmitOrder(orders.SubmitOrderRequest{
		KeyId: bm.KeyId,
		KeyParams: orders.ExitOrder{
			Symbol:     bracket.Symbol,
			Side:       side,
			Amount:     bracket.Quantity,
			Type:       "stop",
			StopPrice:  bracket.StopLossPrice,
			ReduceOnly: &reduceOnly,
		},
	})
	if !slResponse.Acked() {
		bm.compensate(bracket)
		bm.failPlacement(bracket, fmt.Sprintf("stop loss leg rejected: %v", slResponse.Data.Msg))
		return fmt.Errorf("stop loss leg rejected: %v", slResponse.Data.Msg)
	}
	bracket.StopLossOrderId = slResponse.Data.OrderId

	bracket.Status = Active
	bm.Store.UpdateBracket(bracket.ID, bracket)
	bm.Statsd.Inc("bracket.active")
	bm.Log.Info("bracket legs placed",
		zap.String("bracketId", bracket.ID.Hex()),
		zap.String("takeProfitOrderId", bracket.TakeProfitOrderId),
		zap.String("stopLossOrderId", bracket.StopLossOrderId),
	)

	return bm.Coordinator.Track(bracket)
}

// compensate cancels the already placed take-profit leg after the stop leg
// failed. One attempt only: the placement is failing anyway and the retry
// machinery belongs to the coordinator.
func (bm *BracketManager) compensate(bracket *models.MongoBracket) {
	response := bm.Gateway.CancelOrder(orders.CancelOrderRequest{
		KeyId: bm.KeyId,
		KeyParams: orders.CancelOrderRequestParams{
			OrderId: bracket.TakeProfitOrderId,
			Symbol:  bracket.Symbol,
		},
	})
	if orders.ClassifyCancel(response) == orders.CancelTransient {
		bm.Statsd.Inc("bracket.compensate_failed")
		bm.Log.Error("compensating cancel of take profit leg failed",
			zap.String("bracketId", bracket.ID.Hex()),
			zap.String("takeProfitOrderId", bracket.TakeProfitOrderId),
			zap.String("msg", response.Data.Msg),
		)
		return
	}
	bm.Statsd.Inc("bracket.compensate")
}

func (bm *BracketManager) failPlacement(bracket *models.MongoBracket, reason string) {
	bracket.Status = Error
	bracket.ErrorMessage = reason
	now := time.Now().UTC()
	bracket.CompletedAt = &now
	bm.Store.UpdateBracket(bracket.ID, bracket)
	bm.Dispatcher.Emit(EventBracketError, bracket)
	bm.Statsd.Inc("bracket.placement_error")
	bm.Log.Error("bracket placement failed",
		zap.String("bracketId", bracket.ID.Hex()),
		zap.String("reason", reason),
	)
}

// CancelBracketOrder cancels a live bracket by parent order id. Pending and
// terminal brackets report false.
func (bm *BracketManager) CancelBracketOrder(parentOrderId string) bool {
	return bm.Coordinator.CancelBracket(parentOrderId, "manual cancel")
}
