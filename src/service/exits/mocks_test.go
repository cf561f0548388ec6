package exits

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	"github.com/Taamir-Ransome/grodt/src/trading/orders"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockStatsdClient struct {
}

func (sd *MockStatsdClient) Inc(statName string) {
}

func (sd *MockStatsdClient) IncRated(statName string, rate float32) {
}

func (sd *MockStatsdClient) Gauge(statName string, value int64) {
}

func (sd *MockStatsdClient) Timing(statName string, value int64) {
}

func (sd *MockStatsdClient) TimingDuration(statName string, value time.Duration) {
}

func GetLoggerStatsd() (interfaces.ILogger, interfaces.IStatsClient) {
	return zap.NewNop(), &MockStatsdClient{}
}

// MockGateway counts submissions and cancels and lets a test script
// rejections per order type or per order id.
type MockGateway struct {
	CallCount      *sync.Map // side, symbol and type call counters
	CreatedOrders  *list.List
	CanceledOrders *sync.Map // orderId -> cancel attempt count

	RejectTypes     map[string]bool // order type -> reject submissions
	CancelTransient map[string]int  // orderId -> transient failures before success, -1 means always
	CancelClosed    map[string]bool // orderId -> answer "already filled"

	mux sync.Mutex
	seq int
}

func NewMockedGateway() *MockGateway {
	return &MockGateway{
		CallCount:       &sync.Map{},
		CreatedOrders:   list.New(),
		CanceledOrders:  &sync.Map{},
		RejectTypes:     map[string]bool{},
		CancelTransient: map[string]int{},
		CancelClosed:    map[string]bool{},
	}
}

func (mg *MockGateway) count(key string) {
	callCount, _ := mg.CallCount.LoadOrStore(key, 0)
	mg.CallCount.Store(key, callCount.(int)+1)
}

func (mg *MockGateway) SubmitOrder(req orders.SubmitOrderRequest) orders.OrderResponse {
	mg.mux.Lock()
	defer mg.mux.Unlock()

	mg.count(req.KeyParams.Side)
	mg.count(req.KeyParams.Symbol)
	mg.count(req.KeyParams.Type)

	if mg.RejectTypes[req.KeyParams.Type] {
		return orders.OrderResponse{Status: "ERR", Data: orders.OrderResponseData{Msg: "rejected by venue"}}
	}

	mg.seq++
	orderId := req.KeyParams.Type + strconv.Itoa(mg.seq)
	mg.CreatedOrders.PushBack(req.KeyParams)
	return orders.OrderResponse{Status: "OK", Data: orders.OrderResponseData{
		OrderId: orderId,
		Status:  "open",
	}}
}

func (mg *MockGateway) CancelOrder(req orders.CancelOrderRequest) orders.OrderResponse {
	mg.mux.Lock()
	defer mg.mux.Unlock()

	orderId := req.KeyParams.OrderId
	attempts, _ := mg.CanceledOrders.LoadOrStore(orderId, 0)
	mg.CanceledOrders.Store(orderId, attempts.(int)+1)

	if mg.CancelClosed[orderId] {
		return orders.OrderResponse{Status: "ERR", Data: orders.OrderResponseData{
			OrderId: orderId,
			Status:  "filled",
		}}
	}
	if remaining, ok := mg.CancelTransient[orderId]; ok {
		if remaining == -1 || attempts.(int) < remaining {
			return orders.OrderResponse{Status: "ERR", Data: orders.OrderResponseData{Msg: "venue timeout"}}
		}
	}
	return orders.OrderResponse{Status: "OK", Data: orders.OrderResponseData{
		OrderId: orderId,
		Status:  "canceled",
	}}
}

func (mg *MockGateway) CancelAttempts(orderId string) int {
	attempts, ok := mg.CanceledOrders.Load(orderId)
	if !ok {
		return 0
	}
	return attempts.(int)
}

// MockBracketStore keeps brackets in memory and lets a test push order
// updates into subscribed callbacks the way the change stream would.
type MockBracketStore struct {
	Brackets       *sync.Map // bracket id hex -> *models.MongoBracket
	Orders         *sync.Map // order id -> *models.MongoOrder
	OrderCallbacks *sync.Map
}

func NewMockedBracketStore() *MockBracketStore {
	return &MockBracketStore{
		Brackets:       &sync.Map{},
		Orders:         &sync.Map{},
		OrderCallbacks: &sync.Map{},
	}
}

func (ms *MockBracketStore) SaveBracket(bracket *models.MongoBracket) *models.MongoBracket {
	ms.Brackets.Store(bracket.ID.Hex(), bracket)
	return bracket
}

func (ms *MockBracketStore) UpdateBracket(bracketId *primitive.ObjectID, bracket *models.MongoBracket) {
	ms.Brackets.Store(bracketId.Hex(), bracket)
}

func (ms *MockBracketStore) GetOrder(orderId string) *models.MongoOrder {
	orderRaw, ok := ms.Orders.Load(orderId)
	if !ok {
		return nil
	}
	return orderRaw.(*models.MongoOrder)
}

func (ms *MockBracketStore) SubscribeToOrder(orderId string, onOrderStatusUpdate func(order *models.MongoOrder)) error {
	ms.OrderCallbacks.Store(orderId, onOrderStatusUpdate)
	existingOrder := ms.GetOrder(orderId)
	if existingOrder != nil && existingOrder.Status != "" && existingOrder.Status != "open" {
		onOrderStatusUpdate(existingOrder)
	}
	return nil
}

func (ms *MockBracketStore) InitOrdersWatch() {
}

// PushOrderUpdate delivers an order update to the subscribed callback, as
// the storage change stream would.
func (ms *MockBracketStore) PushOrderUpdate(order *models.MongoOrder) {
	callbackRaw, ok := ms.OrderCallbacks.Load(order.OrderId)
	if !ok {
		return
	}
	callbackRaw.(func(order *models.MongoOrder))(order)
}

// MockMarketData serves a fixed bar history and quote.
type MockMarketData struct {
	Bars  []interfaces.OHLCV
	Quote float64
}

func (md *MockMarketData) GetBars(symbol string, lookback int) []interfaces.OHLCV {
	if lookback < len(md.Bars) {
		return md.Bars[len(md.Bars)-lookback:]
	}
	return md.Bars
}

func (md *MockMarketData) GetQuote(symbol string) float64 {
	return md.Quote
}

// eventRecorder counts dispatched bracket events per kind.
type eventRecorder struct {
	mux    sync.Mutex
	events []BracketEvent
}

func newEventRecorder(dispatcher *EventDispatcher) *eventRecorder {
	recorder := &eventRecorder{}
	dispatcher.SubscribeAll(func(event BracketEvent) {
		recorder.mux.Lock()
		defer recorder.mux.Unlock()
		recorder.events = append(recorder.events, event)
	})
	return recorder
}

func (er *eventRecorder) CountByKind(kind string) int {
	er.mux.Lock()
	defer er.mux.Unlock()
	count := 0
	for _, event := range er.events {
		if event.Kind == kind {
			count++
		}
	}
	return count
}

func (er *eventRecorder) TerminalCount() int {
	return er.CountByKind(EventBracketCompleted) +
		er.CountByKind(EventBracketCancelled) +
		er.CountByKind(EventBracketError)
}
