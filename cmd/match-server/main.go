package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Ikram11215/puissance4game/internal/api"
	appcfg "github.com/Ikram11215/puissance4game/internal/config"
	"github.com/Ikram11215/puissance4game/internal/match"
	"github.com/Ikram11215/puissance4game/internal/msgcat"
	"github.com/Ikram11215/puissance4game/internal/obslog"
	"github.com/Ikram11215/puissance4game/internal/presence"
	"github.com/Ikram11215/puissance4game/internal/store"
	"github.com/Ikram11215/puissance4game/internal/ws"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	repo, err := store.NewRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}

	var idx *presence.Store
	if cfg.RedisURL != "" {
		idx, err = presence.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("presence init error: %v", err)
		}
	}

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("msgcat init error: %v", err)
	}

	hub := ws.NewHub(cat)
	regOpts := []match.Option{
		match.WithQueueSize(cfg.RoomQueueSize),
		match.WithFinishedTTL(cfg.FinishedRoomTTL),
	}
	if idx != nil {
		regOpts = append(regOpts, match.WithPresence(idx))
	}
	reg := match.NewRegistry(repo, hub, regOpts...)
	gateway := ws.NewServer(hub, reg, cfg.AllowedOrigin)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.HandleWS)
	mux.HandleFunc("/health", gateway.HandleHealth)
	socketSrv := &http.Server{Addr: cfg.SocketAddr, Handler: mux}
	go func() {
		obslog.L().Info("socket_listen", zap.String("addr", cfg.SocketAddr))
		if err := socketSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("socket server error: %v", err)
		}
	}()

	var apiPresence api.PresenceIndex
	if idx != nil {
		apiPresence = idx
	}
	apiSrv := &fasthttp.Server{
		Handler:      api.NewServer(repo, apiPresence).Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("api_listen", zap.String("addr", cfg.APIAddr))
		if err := apiSrv.ListenAndServe(cfg.APIAddr); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	obslog.L().Info("shutdown_begin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = socketSrv.Shutdown(shutdownCtx)
	_ = apiSrv.ShutdownWithContext(shutdownCtx)
	if idx != nil {
		_ = idx.Close()
	}
	_ = repo.Close()
	obslog.L().Info("shutdown_done")
}
