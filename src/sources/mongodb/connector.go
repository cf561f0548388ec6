package mongodb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Taamir-Ransome/grodt/src/logging"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	statsd_client "github.com/Taamir-Ransome/grodt/src/statsd"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
)

var mongoClient *mongo.Client
var log interfaces.ILogger

func init() {
	logger, _ := logging.GetZapLogger()
	log = logger.With(zap.String("logger", "srcMongo"))
}

func GetCollection(colName string) *mongo.Collection {
	client := GetMongoClientInstance()
	return client.Database(os.Getenv("MONGODBNAME")).Collection(colName)
}

func GetMongoClientInstance() *mongo.Client {
	if mongoClient == nil {
		url := os.Getenv("MONGODB")
		isLocalBuild := os.Getenv("LOCAL") == "true"
		timeout := 10 * time.Second
		ctx, _ := context.WithTimeout(context.Background(), timeout)
		client, err := mongo.Connect(ctx, options.Client().SetDirect(isLocalBuild).
			SetReadPreference(readpref.Primary()).
			SetWriteConcern(writeconcern.New(writeconcern.WMajority())).
			SetRetryWrites(true).
			SetReplicaSet("rs0").
			SetConnectTimeout(timeout).ApplyURI(url))
		mongoClient = client
		if err != nil {
			log.Panic("mongodb connection failure", zap.Error(err))
		}
	}
	return mongoClient
}

// A BracketStore persists brackets and relays order status changes from the
// storage change stream to subscribed callbacks.
type BracketStore struct {
	OrderCallbacks *sync.Map
	Statsd         *statsd_client.StatsdClient
}

// InitOrdersWatch tails the orders collection change stream and invokes the
// subscribed callback on every fill, partial fill and cancel event. Blocks,
// meant to run on its own goroutine.
func (bs *BracketStore) InitOrdersWatch() {
	log.Info("watching for order updates in the storage")
	if bs.OrderCallbacks == nil {
		bs.OrderCallbacks = &sync.Map{}
	}
	CollName := "core_orders"
	ctx := context.Background()
	var coll = GetCollection(CollName)
	pipeline := mongo.Pipeline{bson.D{
		{"$match", bson.M{"$or": []interface{}{
			bson.M{"fullDocument.status": "filled"},
			bson.M{"fullDocument.status": "partially_filled"},
			bson.M{"fullDocument.status": "canceled"},
		}},
		},
	}}
	cs, err := coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		panic(err.Error())
	}
	defer cs.Close(ctx)
	for cs.Next(ctx) {
		var eventDecoded models.MongoOrderUpdateEvent
		err := cs.Decode(&eventDecoded)
		if err != nil {
			log.Error("event decode",
				zap.Error(err),
				zap.String("orderRaw", fmt.Sprintf("%+v", cs.Current)),
			)
		}
		go func(event models.MongoOrderUpdateEvent) {
			orderId := event.FullDocument.OrderId
			log.Info("order update",
				zap.String("orderId", orderId),
				zap.String("status", event.FullDocument.Status),
				zap.Time("updatedAt", event.FullDocument.UpdatedAt),
			)
			getCallBackRaw, ok := bs.OrderCallbacks.Load(orderId)
			if ok {
				callback := getCallBackRaw.(func(order *models.MongoOrder))
				callback(&event.FullDocument)
			}
		}(eventDecoded)
	}
	log.Fatal("order updates watch")
}

// SubscribeToOrder registers a callback for an order's status changes. The
// current document is checked right away so a fill that landed before the
// subscription is replayed instead of lost.
func (bs *BracketStore) SubscribeToOrder(orderId string, onOrderStatusUpdate func(order *models.MongoOrder)) error {
	bs.OrderCallbacks.Store(orderId, onOrderStatusUpdate)
	existingOrder := bs.GetOrder(orderId)
	if existingOrder != nil && existingOrder.Status != "" && existingOrder.Status != "open" {
		log.Info("replaying order state seen before subscription",
			zap.String("orderId", orderId),
			zap.String("status", existingOrder.Status),
		)
		onOrderStatusUpdate(existingOrder)
	}
	return nil
}

func (bs *BracketStore) GetOrder(orderId string) *models.MongoOrder {
	t1 := time.Now()
	CollName := "core_orders"
	ctx := context.Background()
	var request bson.D
	request = bson.D{
		{"id", orderId},
	}
	var coll = GetCollection(CollName)

	var order *models.MongoOrder
	err := coll.FindOne(ctx, request).Decode(&order)
	if err != nil {
		log.Error("", zap.Error(err))
	}
	bs.Statsd.TimingDuration("bracket_store.get_order", time.Since(t1))
	return order
}

// SaveBracket inserts a new bracket document.
func (bs *BracketStore) SaveBracket(bracket *models.MongoBracket) *models.MongoBracket {
	t1 := time.Now()
	log.Info("saving bracket", zap.String("bracket", fmt.Sprintf("%v", bracket)))
	CollName := "core_brackets"
	ctx := context.Background()
	var coll = GetCollection(CollName)
	_, err := coll.InsertOne(ctx, bracket)
	if err != nil {
		log.Error("", zap.Error(err))
	}
	bs.Statsd.TimingDuration("bracket_store.save_bracket", time.Since(t1))
	return bracket
}

// UpdateBracket upserts the full bracket snapshot.
func (bs *BracketStore) UpdateBracket(bracketId *primitive.ObjectID, bracket *models.MongoBracket) {
	t1 := time.Now()
	opts := options.Update().SetUpsert(true)
	filter := bson.D{{"_id", bracketId}}
	update := bson.D{{"$set", bson.D{
		{"parentOrderId", bracket.ParentOrderId},
		{"symbol", bracket.Symbol},
		{"side", bracket.Side},
		{"quantity", bracket.Quantity},
		{"entryPrice", bracket.EntryPrice},
		{"takeProfitPrice", bracket.TakeProfitPrice},
		{"stopLossPrice", bracket.StopLossPrice},
		{"riskRewardRatio", bracket.RiskRewardRatio},
		{"atrValue", bracket.ATRValue},
		{"takeProfitOrderId", bracket.TakeProfitOrderId},
		{"stopLossOrderId", bracket.StopLossOrderId},
		{"status", bracket.Status},
		{"filledQty", bracket.FilledQty},
		{"exitPrice", bracket.ExitPrice},
		{"realizedPnl", bracket.RealizedPnl},
		{"errorMessage", bracket.ErrorMessage},
		{"completedAt", bracket.CompletedAt},
	}}}
	CollName := "core_brackets"
	ctx := context.Background()
	var coll = GetCollection(CollName)
	updated, err := coll.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		log.Error("error in arg", zap.Error(err))
		return
	}
	log.Info("updated bracket",
		zap.Int64("count", updated.ModifiedCount),
		zap.String("status", bracket.Status),
	)
	bs.Statsd.TimingDuration("bracket_store.update_bracket", time.Since(t1))
}

// GetBracket loads a bracket by id, nil when absent.
func (bs *BracketStore) GetBracket(bracketId *primitive.ObjectID) *models.MongoBracket {
	t1 := time.Now()
	CollName := "core_brackets"
	ctx := context.Background()
	var request bson.D
	request = bson.D{
		{"_id", bracketId},
	}
	var coll = GetCollection(CollName)

	var bracket *models.MongoBracket
	err := coll.FindOne(ctx, request).Decode(&bracket)
	if err != nil {
		log.Error("bracket decode error", zap.Error(err))
	}
	bs.Statsd.TimingDuration("bracket_store.get_bracket", time.Since(t1))
	return bracket
}
