package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Natifishman/MessageU/pkg/api"
	"github.com/Natifishman/MessageU/pkg/config"
	"github.com/Natifishman/MessageU/pkg/engine"
	"github.com/Natifishman/MessageU/pkg/metrics"
)

var (
	settingsPath = flag.String("config", config.DefaultSettingsPath, "Path to optional settings file")
	port         = flag.Int("port", 0, "Gateway port (overrides settings)")
)

func main() {
	flag.Parse()

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		log.Fatalf("settings %s: %v", *settingsPath, err)
	}
	if *port != 0 {
		settings.GatewayPort = *port
	}

	registry := prometheus.NewRegistry()
	client := engine.New(settings, metrics.New(registry))
	defer client.Close()

	if err := client.Prepare(); err != nil {
		log.Fatalf("prepare: %v\n%s", err, client.LastError())
	}
	if client.Registered() {
		log.Printf("serving registered client %s", client.SelfName())
	} else {
		log.Printf("serving unregistered client; POST /api/v1/register to begin")
	}

	server := api.NewServer(client, &api.Config{
		Port:     settings.GatewayPort,
		Gatherer: registry,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("gateway listening on 127.0.0.1:%d", settings.GatewayPort)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("gateway: %v", err)
	}
	log.Println("gateway stopped")
}
