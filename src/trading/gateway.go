package trading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"time"

	"github.com/Taamir-Ransome/grodt/src/logging"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/trading/orders"
	"go.uber.org/zap"
)

var log interfaces.ILogger

func init() {
	logger, _ := logging.GetZapLogger()
	log = logger.With(zap.String("logger", "trading"))
}

// A Gateway talks to the venue-facing execution service over its HTTP API.
type Gateway struct {
	baseURL string
	client  *http.Client
	statsd  interfaces.IStatsClient
}

func InitGateway(statsd interfaces.IStatsClient) interfaces.IExecutionGateway {
	return &Gateway{
		baseURL: "http://" + os.Getenv("EXECUTION_GATEWAY"),
		client:  &http.Client{Timeout: 30 * time.Second},
		statsd:  statsd,
	}
}

func (g *Gateway) SubmitOrder(request orders.SubmitOrderRequest) orders.OrderResponse {
	g.statsd.Inc("gateway.submit_order")
	return g.request("createOrder", request)
}

func (g *Gateway) CancelOrder(request orders.CancelOrderRequest) orders.OrderResponse {
	g.statsd.Inc("gateway.cancel_order")
	return g.request("cancelOrder", request)
}

// request posts the payload to the execution service and decodes the order
// response. Attempts are bounded: an unreachable gateway surfaces as an ERR
// response so the caller's own retry or compensation logic stays in charge,
// instead of this layer blocking on a stale request.
func (g *Gateway) request(method string, data interface{}) orders.OrderResponse {
	url := g.baseURL + "/" + method
	jsonStr, err := json.Marshal(data)
	if err != nil {
		return errResponse(fmt.Sprintf("encoding %v request: %v", method, err))
	}
	log.Info("request", zap.String("url", url), zap.String("data", string(jsonStr)))

	const attempts = 3
	var body []byte
	for attempt := 1; attempt <= attempts; attempt++ {
		started := time.Now()
		req, reqErr := http.NewRequest("POST", url, bytes.NewBuffer(jsonStr))
		if reqErr != nil {
			return errResponse(reqErr.Error())
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := g.client.Do(req)
		if doErr != nil {
			err = doErr
			g.statsd.Inc("gateway.request_error")
			log.Error("request not successful",
				zap.String("url", url),
				zap.Error(doErr),
				zap.Int("attempt", attempt),
			)
			time.Sleep(time.Duration(attempt) * time.Second)
			continue
		}
		body, err = ioutil.ReadAll(resp.Body)
		resp.Body.Close()
		g.statsd.TimingDuration("gateway.request", time.Since(started))
		log.Info("response",
			zap.String("status", resp.Status),
			zap.String("request body", string(jsonStr)),
			zap.String("response body", string(body)),
		)
		break
	}
	if body == nil {
		return errResponse(fmt.Sprintf("gateway unreachable after %v attempts: %v", attempts, err))
	}

	var response orders.OrderResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return errResponse(fmt.Sprintf("decoding %v response: %v", method, err))
	}
	return response
}

func errResponse(msg string) orders.OrderResponse {
	return orders.OrderResponse{
		Status: "ERR",
		Data:   orders.OrderResponseData{Msg: msg},
	}
}
