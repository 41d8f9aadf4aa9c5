package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/yy58/multiboxes/config"
	"github.com/yy58/multiboxes/discovery"
	"github.com/yy58/multiboxes/game"
	"github.com/yy58/multiboxes/logger"
	"github.com/yy58/multiboxes/metrics"
	"github.com/yy58/multiboxes/network"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	mets := &metrics.Metrics{}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		log.Fatalf("listen udp :%d: %v", cfg.ListenPort, err)
	}

	bcast := network.NewBroadcaster(conn, cfg.SendWorkers, cfg.SendQueue, log, mets)
	srv := game.NewServer(cfg, log, mets, bcast)
	lst := network.NewListener(conn, srv.Inbox(), log, mets)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Announce ourselves so clients can connect without configuration. The
	// server still works without mDNS; clients then need the address.
	if zc, err := discovery.Register(cfg.ServiceName, cfg.ListenPort); err != nil {
		log.Warnw("zeroconf registration failed", "err", err)
	} else {
		defer zc.Shutdown()
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", metrics.Handler(mets))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("metrics server failed", "err", err)
			}
		}()
		defer httpSrv.Close()
	}

	go lst.Run(ctx)

	loopDone := make(chan struct{})
	go func() {
		srv.Run(ctx)
		close(loopDone)
	}()

	if ip, err := discovery.LocalIP(); err == nil {
		log.Infof("multibox server listening on %s:%d", ip, cfg.ListenPort)
	} else {
		log.Infof("multibox server listening on :%d", cfg.ListenPort)
	}
	fmt.Printf("multibox server on :%d, waiting for players...\n", cfg.ListenPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	// The loop may be mid-tick enqueueing sends; it must be fully stopped
	// before the broadcaster queue closes.
	<-loopDone
	_ = conn.Close()
	bcast.Close()
}
