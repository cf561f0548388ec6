package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"sync"

	"github.com/buaazp/fasthttprouter"
	"github.com/Taamir-Ransome/grodt/src/logging"
	"github.com/Taamir-Ransome/grodt/src/service"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var log interfaces.ILogger

var (
	addr     = flag.String("addr", ":8080", "TCP address to listen to")
	compress = flag.Bool("compress", false, "Whether to enable transparent response compression")
)

func init() {
	logger, _ := logging.GetZapLogger()
	log = logger.With(zap.String("logger", "srv"))
}

// RunServer starts the HTTP server serving the bracket API.
func RunServer(wg *sync.WaitGroup) {
	router := fasthttprouter.New()
	router.GET("/healthz", Healthz)
	router.POST("/createBracket", CreateBracket)
	router.POST("/cancelBracket", CancelBracket)
	router.GET("/brackets", ListBrackets)
	log.Info("Listening on port :8080")
	if err := fasthttp.ListenAndServe(*addr, router.Handler); err != nil {
		wg.Done()
		log.Fatal("Error in ListenAndServe",
			zap.String("err", err.Error()),
		)
	}
}

// Healthz is a handler to answer to trade exit service health check requests.
func Healthz(ctx *fasthttp.RequestCtx) {
	fmt.Fprint(ctx, "alive!\n")
}

// CreateBracket passes a request to protect a filled entry with exit legs to
// the service instance and returns a status for the attempt.
func CreateBracket(ctx *fasthttp.RequestCtx) {
	var createBracket service.CreateBracketRequest
	_ = json.Unmarshal(ctx.PostBody(), &createBracket)
	log.Info("incoming", zap.String("request", fmt.Sprintf("%+v", createBracket)))
	response := service.GetTradeExitService().CreateBracket(createBracket)
	jsonStr, err := json.Marshal(response)
	if err != nil {
		log.Error("", zap.Error(err))
	}
	_, _ = fmt.Fprint(ctx, string(jsonStr))
}

type cancelBracketRequest struct {
	ParentOrderId string `json:"parentOrderId"`
}

// CancelBracket passes a request to cancel a live bracket to the service
// instance and returns whether anything changed.
func CancelBracket(ctx *fasthttp.RequestCtx) {
	var cancelBracket cancelBracketRequest
	_ = json.Unmarshal(ctx.PostBody(), &cancelBracket)
	log.Info("incoming", zap.String("request", fmt.Sprintf("%+v", cancelBracket)))
	cancelled := service.GetTradeExitService().CancelBracket(cancelBracket.ParentOrderId)
	status := "OK"
	if !cancelled {
		status = "ERR"
	}
	jsonStr, err := json.Marshal(map[string]interface{}{
		"status":    status,
		"cancelled": cancelled,
	})
	if err != nil {
		log.Error("", zap.Error(err))
	}
	_, _ = fmt.Fprint(ctx, string(jsonStr))
}

// ListBrackets returns snapshots of every tracked bracket.
func ListBrackets(ctx *fasthttp.RequestCtx) {
	brackets := service.GetTradeExitService().ListBrackets()
	jsonStr, err := json.Marshal(brackets)
	if err != nil {
		log.Error("", zap.Error(err))
	}
	ctx.SetContentType("application/json; charset=utf8")
	_, _ = fmt.Fprint(ctx, string(jsonStr))
}
