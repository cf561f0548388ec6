package interfaces

import (
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IBracketStore persists bracket snapshots and delivers push-style order
// status updates from the storage change stream.
type IBracketStore interface {
	SaveBracket(bracket *models.MongoBracket) *models.MongoBracket
	UpdateBracket(bracketId *primitive.ObjectID, bracket *models.MongoBracket)
	GetOrder(orderId string) *models.MongoOrder
	SubscribeToOrder(orderId string, onOrderStatusUpdate func(order *models.MongoOrder)) error
	InitOrdersWatch()
}
