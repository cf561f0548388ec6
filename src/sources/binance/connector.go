package binance

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Cryptocurrencies-AI/go-binance"
)

func GetBinanceClientInstance() (binance.Binance, context.CancelFunc) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	// use second return value for cancelling request when shutting down the app

	binanceService := binance.NewAPIService(
		"https://www.binance.com",
		"",
		nil,
		nil,
		ctx,
	)
	b := binance.NewBinance(binanceService)
	return b, cancelCtx
}

// ListenBinancePrice streams all-market mini tickers, spot and futures, into
// the callback given. Blocks until interrupt.
func ListenBinancePrice(onMessage func(data *binance.RawEvent, marketType int8) error) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	binanceInstance, cancelCtx := GetBinanceClientInstance()
	kechSpot, doneSpot, err := binanceInstance.SpotAllMarketMiniTickersStreamWebsocket()
	if err != nil {
		return fmt.Errorf("listen spot: %v", err)
	}
	kechFutures, doneFutures, err := binanceInstance.FuturesAllMarketMiniTickersStreamWebsocket()
	if err != nil {
		return fmt.Errorf("listen futures: %v", err)
	}

	go func() {
		for {
			select {
			case e := <-kechFutures:
				onMessage(e, 1)
			case e := <-kechSpot:
				onMessage(e, 0)
			case <-doneSpot:
				break
			case <-doneFutures:
				break
			}
		}
	}()

	log.Info("waiting for interrupt")
	<-interrupt
	log.Info("canceling context")
	cancelCtx()
	log.Info("waiting for signal")
	<-doneSpot
	<-doneFutures
	log.Info("exit")
	return nil
}
