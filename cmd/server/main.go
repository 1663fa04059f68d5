package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trackamole/internal"
	"trackamole/internal/api"
	"trackamole/internal/certs"
	"trackamole/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}
	cfg := internal.LoadConfig()
	logger, err := utils.OpenLogger(cfg.LogPath)
	if err != nil {
		log.Fatalf("open log: %v", err)
	}
	defer logger.Close()
	if err := internal.ConfigError(); err != nil {
		logger.Warnf("config.json ignored: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(cfg.ModelDir, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	cm := certs.NewCertManager(cfg.CertDir)
	tlsCfg, leaf, err := cm.TLSConfig()
	switch {
	case err == nil:
		if cm.ExpiresWithin(leaf, 30*24*time.Hour) {
			logger.Warnf("certificate expires on %s", leaf.NotAfter.Format(time.DateOnly))
		}
		srv.TLSConfig = tlsCfg
		logger.Infof("serving models from %s on https://%s", cfg.ModelDir, cfg.ListenAddr)
		err = srv.ListenAndServeTLS("", "")
	case errors.Is(err, certs.ErrNoPair):
		logger.Infof("serving models from %s on http://%s", cfg.ModelDir, cfg.ListenAddr)
		err = srv.ListenAndServe()
	default:
		logger.Errorf("tls: %v", err)
		log.Fatal(err)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
