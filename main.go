package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/Taamir-Ransome/grodt/src/server"
	"github.com/Taamir-Ransome/grodt/src/service"
)

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Print("Error loading .env file")
	}
}

func main() {
	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT) // k8s sends SIGTERM and waits
	defer stop()
	go func() {
		<-ctx.Done()
		log.Println("Brute shutdown.")
		os.Exit(0)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go server.RunServer(&wg)
	wg.Add(1)
	isLocalBuild := os.Getenv("LOCAL") == "true"
	go service.GetTradeExitService().Init(&wg, isLocalBuild)
	wg.Wait()
}
