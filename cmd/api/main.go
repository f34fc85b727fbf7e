package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/localstore"
	"github.com/foliobooks/folio/pkg/pdf"
	"github.com/foliobooks/folio/pkg/server"
	"github.com/foliobooks/folio/pkg/version"
	"github.com/foliobooks/folio/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting folio", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	store, err := localstore.Open(ctx, cfg)
	if err != nil {
		log.Err(err).Fatal("local store error")
	}
	log.Info("local store opened", logger.Data{"path": cfg.DatabaseFilePath})

	var renderer *pdf.Renderer
	if !cfg.PDFRendererDisabled {
		renderer = pdf.NewRenderer(cfg.PDFRendererInstances, cfg.PDFRendererInstanceWait)
	}

	wrkr := worker.New(cfg)

	srv, err := server.New(cfg, store, wrkr, renderer)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		// Extract actual port (useful when ServerPort is 0)
		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")

	if renderer != nil {
		if err := renderer.Close(); err != nil {
			log.Err(err).Error("pdf renderer close error")
		}
	}

	err = store.Close()
	if err != nil {
		log.Err(err).Error("local store close error")
	}
	log.Info("local store closed")
}
