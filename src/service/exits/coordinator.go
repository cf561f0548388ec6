package exits

import (
	"context"
	"sync"
	"time"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	"github.com/Taamir-Ransome/grodt/src/trading/orders"
	"github.com/qmuntal/stateless"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// A bracketRuntime is the in-memory owner of one live bracket. Every
// mutation of the bracket document or its state machine happens under mux,
// which is what makes near-simultaneous fills on both legs safe.
type bracketRuntime struct {
	mux     sync.Mutex
	bracket *models.MongoBracket
	machine *stateless.StateMachine
}

// The Coordinator emulates one-cancels-other semantics for active brackets:
// it consumes order status updates, settles which leg won, cancels the
// sibling with bounded retries, and sweeps brackets past their timeout.
type Coordinator struct {
	runtimes    sync.Map // bracket id hex -> *bracketRuntime
	parentIndex sync.Map // parent order id -> *bracketRuntime

	Gateway    interfaces.IExecutionGateway
	Store      interfaces.IBracketStore
	Dispatcher *EventDispatcher
	KeyId      *primitive.ObjectID

	Timeout       time.Duration
	SweepInterval time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	Statsd interfaces.IStatsClient
	Log    interfaces.ILogger
}

func NewCoordinator(gateway interfaces.IExecutionGateway, store interfaces.IBracketStore, dispatcher *EventDispatcher, keyId *primitive.ObjectID, timeout, sweepInterval time.Duration, retryAttempts int, retryDelay time.Duration, statsd interfaces.IStatsClient, log interfaces.ILogger) *Coordinator {
	return &Coordinator{
		Gateway:       gateway,
		Store:         store,
		Dispatcher:    dispatcher,
		KeyId:         keyId,
		Timeout:       timeout,
		SweepInterval: sweepInterval,
		RetryAttempts: retryAttempts,
		RetryDelay:    retryDelay,
		Statsd:        statsd,
		Log:           log,
	}
}

// Track takes ownership of an active bracket and subscribes to both legs.
// Updates that arrived before the subscription are replayed by the store, so
// a leg filled during placement is not lost.
func (c *Coordinator) Track(bracket *models.MongoBracket) error {
	rt := &bracketRuntime{
		bracket: bracket,
		machine: newBracketMachine(bracket.Status, c.Log),
	}
	c.runtimes.Store(bracket.ID.Hex(), rt)
	c.parentIndex.Store(bracket.ParentOrderId, rt)

	onUpdate := func(order *models.MongoOrder) {
		go c.handleOrderUpdate(rt, order)
	}
	if err := c.Store.SubscribeToOrder(bracket.TakeProfitOrderId, onUpdate); err != nil {
		return err
	}
	return c.Store.SubscribeToOrder(bracket.StopLossOrderId, onUpdate)
}

// handleOrderUpdate is the single consumer of leg status changes for a
// bracket. Both legs funnel through the same runtime lock, so a double fill
// settles deterministically: the first update wins, the second sees a
// terminal bracket and is dropped.
func (c *Coordinator) handleOrderUpdate(rt *bracketRuntime, order *models.MongoOrder) {
	rt.mux.Lock()
	defer rt.mux.Unlock()

	bracket := rt.bracket
	if IsTerminal(bracket.Status) || !bracket.HasLeg(order.OrderId) {
		c.Statsd.Inc("coordinator.update_dropped")
		c.Log.Debug("dropping update against a settled bracket",
			zap.String("bracketId", bracket.ID.Hex()),
			zap.String("orderId", order.OrderId),
			zap.String("status", order.Status),
		)
		return
	}

	switch order.Status {
	case "filled":
		c.settleFilledLeg(rt, order)
	case "partially_filled":
		c.recordPartialFill(rt, order)
	case "canceled":
		c.settleExternalCancel(rt, order)
	default:
		c.Log.Debug("ignoring order update",
			zap.String("orderId", order.OrderId),
			zap.String("status", order.Status),
		)
	}
}

// settleFilledLeg records the winning leg and cancels the sibling. The
// terminal event is emitted only after the cancel resolves, so observers see
// exactly one of completed or error per bracket.
func (c *Coordinator) settleFilledLeg(rt *bracketRuntime, order *models.MongoOrder) {
	bracket := rt.bracket
	if err := rt.machine.Fire(TriggerLegFilled); err != nil {
		c.Statsd.Inc("coordinator.fire_rejected")
		return
	}
	bracket.Status = rt.machine.MustState().(string)
	bracket.FilledQty = order.Filled
	bracket.ExitPrice = order.Average
	if bracket.ExitPrice == 0 {
		bracket.ExitPrice = order.Price
	}
	bracket.RealizedPnl = realizedPnl(bracket)
	now := time.Now().UTC()
	bracket.CompletedAt = &now

	winner := "take_profit"
	if order.OrderId == bracket.StopLossOrderId {
		winner = "stop_loss"
	}
	c.Statsd.Inc("coordinator.leg_filled." + winner)
	c.Log.Info("bracket leg filled",
		zap.String("bracketId", bracket.ID.Hex()),
		zap.String("winner", winner),
		zap.Float64("exitPrice", bracket.ExitPrice),
		zap.Float64("realizedPnl", bracket.RealizedPnl),
	)

	sibling := bracket.SiblingOf(order.OrderId)
	if !c.cancelOrderWithRetry(bracket, sibling) {
		c.orphan(rt, "sibling leg "+sibling+" could not be cancelled")
		return
	}

	c.Store.UpdateBracket(bracket.ID, bracket)
	c.Dispatcher.Emit(EventBracketCompleted, bracket)
	c.Statsd.Inc("bracket.completed")
	c.evict(rt)
}

// orphan demotes a settled bracket to error after leg cancel retries ran
// out. The settlement already recorded stands, the legs left on the venue
// need an operator.
func (c *Coordinator) orphan(rt *bracketRuntime, reason string) {
	bracket := rt.bracket
	if err := rt.machine.Fire(TriggerError); err == nil {
		bracket.Status = rt.machine.MustState().(string)
	}
	bracket.ErrorMessage = reason
	c.Store.UpdateBracket(bracket.ID, bracket)
	c.Dispatcher.Emit(EventBracketError, bracket)
	c.Statsd.Inc("coordinator.orphaned_sibling")
	c.Log.Error("bracket legs orphaned on the venue",
		zap.String("bracketId", bracket.ID.Hex()),
		zap.String("reason", reason),
	)
	c.evict(rt)
}

// evict forgets a terminal bracket's runtime so a long-running instance
// does not accumulate settled brackets.
func (c *Coordinator) evict(rt *bracketRuntime) {
	c.runtimes.Delete(rt.bracket.ID.Hex())
	c.parentIndex.Delete(rt.bracket.ParentOrderId)
}

// recordPartialFill parks the bracket in the partial state. The sibling stays
// at full size: the venue treats exit legs as reduce-only so an over-sized
// sibling fill cannot open a position.
func (c *Coordinator) recordPartialFill(rt *bracketRuntime, order *models.MongoOrder) {
	bracket := rt.bracket
	if bracket.Status == Active {
		if err := rt.machine.Fire(TriggerLegPartialFill); err != nil {
			c.Statsd.Inc("coordinator.fire_rejected")
			return
		}
		bracket.Status = rt.machine.MustState().(string)
	}
	if order.Filled > bracket.FilledQty {
		bracket.FilledQty = order.Filled
	}
	c.Store.UpdateBracket(bracket.ID, bracket)
	c.Statsd.Inc("coordinator.partial_fill")
	c.Log.Info("bracket leg partially filled",
		zap.String("bracketId", bracket.ID.Hex()),
		zap.String("orderId", order.OrderId),
		zap.Float64("filled", order.Filled),
	)
}

// settleExternalCancel handles a leg cancelled outside the coordinator, for
// example by an operator on the venue directly. The bracket cannot protect
// the position with one leg, so the sibling comes down too.
func (c *Coordinator) settleExternalCancel(rt *bracketRuntime, order *models.MongoOrder) {
	bracket := rt.bracket
	if err := rt.machine.Fire(TriggerCancel); err != nil {
		c.Statsd.Inc("coordinator.fire_rejected")
		return
	}
	bracket.Status = rt.machine.MustState().(string)
	now := time.Now().UTC()
	bracket.CompletedAt = &now
	bracket.ErrorMessage = "leg " + order.OrderId + " cancelled externally"

	sibling := bracket.SiblingOf(order.OrderId)
	if !c.cancelOrderWithRetry(bracket, sibling) {
		c.orphan(rt, "sibling leg "+sibling+" could not be cancelled")
		return
	}

	c.Store.UpdateBracket(bracket.ID, bracket)
	c.Dispatcher.Emit(EventBracketCancelled, bracket)
	c.Statsd.Inc("coordinator.external_cancel")
	c.evict(rt)
}

// cancelOrderWithRetry cancels a leg with bounded retries and doubling
// delay. A leg that is already filled or already cancelled counts as
// success: there is nothing left to take off the book.
func (c *Coordinator) cancelOrderWithRetry(bracket *models.MongoBracket, orderId string) bool {
	if orderId == "" {
		return true
	}
	delay := c.RetryDelay
	for attempt := 0; attempt < c.RetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		response := c.Gateway.CancelOrder(orders.CancelOrderRequest{
			KeyId: c.KeyId,
			KeyParams: orders.CancelOrderRequestParams{
				OrderId: orderId,
				Symbol:  bracket.Symbol,
			},
		})
		switch orders.ClassifyCancel(response) {
		case orders.CancelOK:
			c.Statsd.Inc("coordinator.cancel_ok")
			return true
		case orders.CancelAlreadyClosed:
			c.Statsd.Inc("coordinator.cancel_already_closed")
			return true
		}
		c.Statsd.Inc("coordinator.cancel_retry")
		c.Log.Warn("cancel attempt failed",
			zap.String("bracketId", bracket.ID.Hex()),
			zap.String("orderId", orderId),
			zap.Int("attempt", attempt+1),
			zap.String("msg", response.Data.Msg),
		)
	}
	return false
}

// CancelBracket cancels both legs of a live bracket. Pending and terminal
// brackets return false; the caller learns nothing changed.
func (c *Coordinator) CancelBracket(parentOrderId string, reason string) bool {
	value, ok := c.parentIndex.Load(parentOrderId)
	if !ok {
		return false
	}
	rt := value.(*bracketRuntime)

	rt.mux.Lock()
	defer rt.mux.Unlock()

	bracket := rt.bracket
	if err := rt.machine.Fire(TriggerCancel); err != nil {
		return false
	}
	bracket.Status = rt.machine.MustState().(string)
	now := time.Now().UTC()
	bracket.CompletedAt = &now
	bracket.ErrorMessage = reason

	tpCancelled := c.cancelOrderWithRetry(bracket, bracket.TakeProfitOrderId)
	slCancelled := c.cancelOrderWithRetry(bracket, bracket.StopLossOrderId)
	if !tpCancelled || !slCancelled {
		c.orphan(rt, "leg cancel retries exhausted")
		return true
	}

	c.Store.UpdateBracket(bracket.ID, bracket)
	c.Dispatcher.Emit(EventBracketCancelled, bracket)
	c.Statsd.Inc("bracket.cancelled")
	c.Log.Info("bracket cancelled",
		zap.String("bracketId", bracket.ID.Hex()),
		zap.String("reason", reason),
	)
	c.evict(rt)
	return true
}

// SweepTimeouts cancels every active bracket older than the configured
// timeout, a guard against lost fill notifications. Brackets with recorded
// fill activity are left alone. Returns how many were swept.
func (c *Coordinator) SweepTimeouts() int {
	cutoff := time.Now().UTC().Add(-c.Timeout)
	swept := 0
	c.runtimes.Range(func(_, value interface{}) bool {
		rt := value.(*bracketRuntime)
		rt.mux.Lock()
		expired := rt.bracket.Status == Active && rt.bracket.CreatedAt.Before(cutoff)
		parentOrderId := rt.bracket.ParentOrderId
		rt.mux.Unlock()
		if expired && c.CancelBracket(parentOrderId, "bracket timeout") {
			swept++
		}
		return true
	})
	if swept > 0 {
		c.Statsd.Inc("coordinator.sweep")
		c.Log.Info("timeout sweep cancelled brackets", zap.Int("count", swept))
	}
	return swept
}

// RunSweeper blocks, sweeping on the configured interval until the context
// is cancelled.
func (c *Coordinator) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SweepTimeouts()
		}
	}
}

// ActiveCount returns how many tracked brackets are not yet terminal.
func (c *Coordinator) ActiveCount() int {
	count := 0
	c.runtimes.Range(func(_, value interface{}) bool {
		rt := value.(*bracketRuntime)
		rt.mux.Lock()
		if !IsTerminal(rt.bracket.Status) {
			count++
		}
		rt.mux.Unlock()
		return true
	})
	return count
}

// Brackets returns point-in-time snapshots of every live bracket. Settled
// brackets are evicted, the storage keeps their history.
func (c *Coordinator) Brackets() []models.MongoBracket {
	out := []models.MongoBracket{}
	c.runtimes.Range(func(_, value interface{}) bool {
		rt := value.(*bracketRuntime)
		rt.mux.Lock()
		out = append(out, *rt.bracket)
		rt.mux.Unlock()
		return true
	})
	return out
}

// realizedPnl computes the round-trip result in quote currency.
func realizedPnl(bracket *models.MongoBracket) float64 {
	qty := bracket.FilledQty
	if qty == 0 {
		qty = bracket.Quantity
	}
	if bracket.Side == "sell" {
		return (bracket.EntryPrice - bracket.ExitPrice) * qty
	}
	return (bracket.ExitPrice - bracket.EntryPrice) * qty
}
