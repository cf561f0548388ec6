package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-redsync/redsync/v4"
	cpu_info "github.com/shirou/gopsutil/cpu"
	cpu_load "github.com/shirou/gopsutil/load"
	"github.com/Taamir-Ransome/grodt/src/config"
	"github.com/Taamir-Ransome/grodt/src/logging"
	"github.com/Taamir-Ransome/grodt/src/service/exits"
	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/service/risk"
	"github.com/Taamir-Ransome/grodt/src/sources"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	redisSource "github.com/Taamir-Ransome/grodt/src/sources/redis"
	statsd_client "github.com/Taamir-Ransome/grodt/src/statsd"
	"github.com/Taamir-Ransome/grodt/src/trading"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// A TradeExitService singleton, the root for bracket runtimes.
type TradeExitService struct {
	cfg         *config.ExitConfig
	gateway     interfaces.IExecutionGateway
	marketData  interfaces.IMarketData
	store       interfaces.IBracketStore
	levels      *exits.LevelCalculator
	ratios      *exits.RatioResolver
	riskCheck   interfaces.IRiskValidator
	dispatcher  *exits.EventDispatcher
	coordinator *exits.Coordinator
	manager     *exits.BracketManager
	rs          *redsync.Redsync
	keyId       *primitive.ObjectID
	statsd      statsd_client.StatsdClient
	log         interfaces.ILogger
	full        bool // indicates whether an instance is full or can take more brackets
	ramFull     bool // indicates close to RAM limit
	cpuFull     bool // indicates out of CPU usage limit
}

var singleton *TradeExitService
var once sync.Once

// GetTradeExitService returns a pointer to instantiated service singleton.
func GetTradeExitService() *TradeExitService {
	once.Do(func() {
		logger, err := logging.GetZapLogger()
		if err != nil {
			log.Fatalf("Logger initialization failed, %s", err.Error())
		}
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("configuration load failed", zap.Error(err))
		}
		statsd := statsd_client.StatsdClient{}
		statsd.Init()
		md := sources.InitMarketData()
		gw := trading.InitGateway(&statsd)
		store := &mongodb.BracketStore{OrderCallbacks: &sync.Map{}, Statsd: &statsd}

		var keyId *primitive.ObjectID
		if hex := os.Getenv("KEY_ID"); hex != "" {
			if id, err := primitive.ObjectIDFromHex(hex); err == nil {
				keyId = &id
			}
		}

		dispatcher := exits.NewEventDispatcher(&statsd, logger)
		coordinator := exits.NewCoordinator(
			gw, store, dispatcher, keyId,
			time.Duration(cfg.BracketTimeoutSeconds)*time.Second,
			time.Duration(cfg.SweepIntervalSeconds)*time.Second,
			cfg.CancelRetryAttempts,
			time.Duration(cfg.CancelRetryDelayMs)*time.Millisecond,
			&statsd, logger,
		)
		singleton = &TradeExitService{
			cfg:         cfg,
			gateway:     gw,
			marketData:  md,
			store:       store,
			levels:      exits.NewLevelCalculator(md, cfg.ATRPeriod, cfg.ATRMultiplier, cfg.FallbackPercent, &statsd, logger),
			ratios:      exits.NewRatioResolver(cfg, logger),
			riskCheck:   risk.NewValidator(cfg, &statsd, logger),
			dispatcher:  dispatcher,
			coordinator: coordinator,
			manager:     exits.NewBracketManager(gw, store, dispatcher, coordinator, keyId, &statsd, logger),
			keyId:       keyId,
			statsd:      statsd,
			log:         logger,
		}
		logger.Info("trade exit service instantiated")
		statsd.Inc("trade_exit_service.instantiated")
	})
	return singleton
}

// Init starts the order update watch, the timeout sweeper and the background
// reporting loops.
func (ts *TradeExitService) Init(wg *sync.WaitGroup, isLocalBuild bool) {
	t1 := time.Now()
	ts.log.Info("trade exit service init",
		zap.Bool("isLocalBuild", isLocalBuild),
	)
	ts.rs = redisSource.GetRedsync()

	go ts.store.InitOrdersWatch()
	go ts.coordinator.RunSweeper(context.Background())
	go ts.runReporting()
	go ts.runIsFullTracking()

	dt := time.Since(t1)
	ts.statsd.TimingDuration("trade_exit_service.init", dt)
	ts.log.Info("init complete, ready to settle brackets", zap.Duration("elapsed while init", dt))
}

type CreateBracketRequest struct {
	ParentOrderId   string  `json:"parentOrderId"`
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	Quantity        float64 `json:"quantity"`
	EntryPrice      float64 `json:"entryPrice"`
	MarketCondition string  `json:"marketCondition"`
}

type CreateBracketResponse struct {
	Status          string  `json:"status"`
	BracketId       string  `json:"bracketId,omitempty"`
	TakeProfitPrice float64 `json:"takeProfitPrice,omitempty"`
	StopLossPrice   float64 `json:"stopLossPrice,omitempty"`
	RiskRewardRatio float64 `json:"riskRewardRatio,omitempty"`
	Msg             string  `json:"msg,omitempty"`
}

// CreateBracket derives exit levels for a filled entry, validates them
// against the risk budget and places both legs. Settlement is serialized
// across replicas with a per-bracket distributed lock.
func (ts *TradeExitService) CreateBracket(request CreateBracketRequest) CreateBracketResponse {
	t1 := time.Now()
	ts.statsd.Inc("trade_exit_service.create_request")

	if ts.full {
		ts.statsd.Inc("trade_exit_service.reject_full")
		return CreateBracketResponse{Status: "ERR", Msg: "instance is out of resources, try another replica"}
	}
	if ts.coordinator.ActiveCount() >= ts.cfg.MaxActiveBrackets {
		ts.statsd.Inc("trade_exit_service.reject_capacity")
		return CreateBracketResponse{Status: "ERR", Msg: fmt.Sprintf("active bracket limit %v reached", ts.cfg.MaxActiveBrackets)}
	}

	mutexName := fmt.Sprintf("bracket:%v:%v", request.Symbol, request.ParentOrderId)
	mutex := ts.rs.NewMutex(mutexName,
		redsync.WithTries(2),
		redsync.WithRetryDelay(200*time.Millisecond),
		redsync.WithExpiry(10*time.Second),
	)
	if err := mutex.Lock(); err != nil {
		ts.log.Warn("bracket settled by another replica",
			zap.String("mutex", mutexName),
			zap.Error(err),
		)
		return CreateBracketResponse{Status: "ERR", Msg: "bracket settled by another replica"}
	}
	defer mutex.Unlock()

	effectiveRatio := ts.ratios.Effective(request.Symbol, request.MarketCondition)
	levels := ts.levels.Compute(request.Symbol, request.Side, request.EntryPrice, effectiveRatio)

	quantity := request.Quantity
	if quantity == 0 {
		quantity = ts.riskCheck.SuggestQuantity(request.EntryPrice, levels.StopLoss)
	}

	validation := ts.riskCheck.Validate(request.Symbol, request.EntryPrice, levels.StopLoss, quantity)
	switch validation.Decision {
	case interfaces.RiskReject:
		ts.statsd.Inc("trade_exit_service.reject_risk")
		return CreateBracketResponse{Status: "ERR", Msg: validation.Reason}
	case interfaces.RiskAdjust:
		// the stop moved toward entry, the target keeps the ratio from the new stop
		levels.StopLoss = validation.StopLossPrice
		levels.TakeProfit = exits.ComputeTakeProfit(request.EntryPrice, levels.StopLoss, effectiveRatio, request.Side)
	}

	bracket, err := ts.manager.CreateBracketOrder(exits.ParentFill{
		ParentOrderId: request.ParentOrderId,
		Symbol:        request.Symbol,
		Side:          request.Side,
		Quantity:      quantity,
		EntryPrice:    request.EntryPrice,
	}, levels, effectiveRatio)
	if err != nil {
		ts.statsd.Inc("trade_exit_service.reject_invalid")
		return CreateBracketResponse{Status: "ERR", Msg: err.Error()}
	}

	if err := ts.manager.PlaceBracketOrders(bracket); err != nil {
		return CreateBracketResponse{Status: "ERR", BracketId: bracket.ID.Hex(), Msg: err.Error()}
	}

	ts.statsd.TimingDuration("trade_exit_service.create_bracket", time.Since(t1))
	return CreateBracketResponse{
		Status:          "OK",
		BracketId:       bracket.ID.Hex(),
		TakeProfitPrice: bracket.TakeProfitPrice,
		StopLossPrice:   bracket.StopLossPrice,
		RiskRewardRatio: bracket.RiskRewardRatio,
	}
}

// CancelBracket cancels a live bracket by its parent order id.
func (ts *TradeExitService) CancelBracket(parentOrderId string) bool {
	ts.statsd.Inc("trade_exit_service.cancel_request")
	return ts.manager.CancelBracketOrder(parentOrderId)
}

// ListBrackets returns snapshots of every tracked bracket.
func (ts *TradeExitService) ListBrackets() []models.MongoBracket {
	return ts.coordinator.Brackets()
}

// Subscribe registers a bracket lifecycle observer.
func (ts *TradeExitService) Subscribe(kind string, observer exits.Observer) {
	ts.dispatcher.Subscribe(kind, observer)
}

// runReporting each minute sends how many brackets the service holds per
// symbol and in total.
func (ts *TradeExitService) runReporting() {
	ts.log.Info("starting statistics reporting")
	ticker := time.NewTicker(1 * time.Minute)
	for {
		select {
		case <-ticker.C:
			brackets := ts.coordinator.Brackets()
			ts.log.Info("reporting", zap.Int("brackets count", len(brackets)))
			numBracketsBySymbol := make(map[string]int64)
			for _, bracket := range brackets {
				if exits.IsTerminal(bracket.Status) {
					continue
				}
				numBracketsBySymbol[bracket.Symbol]++
			}
			for symbol, numBrackets := range numBracketsBySymbol {
				metricName := fmt.Sprintf("trade_exit_service.symbols.%v", symbol)
				ts.statsd.Gauge(metricName, numBrackets)
			}
			ts.statsd.Gauge("trade_exit_service.active_brackets", int64(ts.coordinator.ActiveCount()))
		}
	}
}

// runIsFullTracking monitors resources continuously and sets or resets the
// 'full' flag when the instance is close to its memory or CPU limit.
func (ts *TradeExitService) runIsFullTracking() {
	ts.log.Info("starting resources tracking")
	var err error
	var loadAvg *cpu_load.AvgStat
	var loadAvgScaled float64     // load average scaled by number of cores
	var cpuCoresCount int         // number of CPU cores
	var sysinfo syscall.Sysinfo_t // contains memory usage
	var isFullPrev bool
	for {
		isFullPrev = ts.full
		// check CPU usage
		loadAvg, err = cpu_load.Avg()
		if err != nil {
			ts.log.Error("load avg read", zap.Error(err))
		}
		cpuCoresCount, err = cpu_info.Counts(true)
		if err != nil {
			ts.log.Error("cpu count", zap.Error(err))
		}
		loadAvgScaled = loadAvg.Load5 / float64(cpuCoresCount)
		if loadAvgScaled > 12.0 {
			ts.cpuFull = true
		} else {
			ts.cpuFull = false
		}
		// check for free RAM
		err = syscall.Sysinfo(&sysinfo)
		if err != nil {
			ts.log.Error("free RAM read", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if sysinfo.Freeram < 10*1024*1024 { // ten megabytes
			ts.ramFull = true
		} else if sysinfo.Freeram > 12*1024*1024 { // 12 megabytes
			ts.ramFull = false
		}
		// set we are full or not
		if ts.cpuFull || ts.ramFull {
			ts.full = true
		} else if !ts.cpuFull && !ts.ramFull {
			ts.full = false
		}
		if isFullPrev != ts.full {
			ts.log.Info("switching settlement state", zap.Bool("skip incoming brackets", ts.full))
		}
		ts.log.Debug("resources check",
			zap.Uint64("free RAM, bytes", sysinfo.Freeram),
			zap.Float64("load avg 5 scaled", loadAvgScaled),
			zap.Float64("load avg 5", loadAvg.Load5),
			zap.Int("cpu count", cpuCoresCount),
		)
		time.Sleep(1 * time.Second)
	}
}
