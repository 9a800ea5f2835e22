package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openst/facilitator/config"
	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/ethclient"
	"github.com/openst/facilitator/facilitator"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/presenter"
	"github.com/openst/facilitator/repository"
	"github.com/openst/facilitator/service"
)

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	dbConn, err := db.ConnectToDBAndMigrate(cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database and apply migrations")
	}
	defer dbConn.Close()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(":2112", nil)
		if err != nil {
			logger.WithError(err).Fatal("can't start listener for prometheus metrics")
		}
	}()

	repo := repository.NewRepo(dbConn)
	if cfg.Presenter != nil {
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), repo)
		go func() {
			err := pr.Serve(cfg.Presenter.Host)
			if err != nil {
				logger.WithError(err).Fatal("can't serve presenter")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients := make(map[string]ethclient.Client, len(cfg.Chains))
	clientFor := func(name string, chain *config.ChainConfig) ethclient.Client {
		if client, ok := clients[name]; ok {
			return client
		}
		client, err2 := ethclient.NewClient(chain.RPC.Host, chain.RPC.Timeout, chain.ChainID)
		if err2 != nil {
			logger.WithError(err2).WithField("chain", name).Fatal("can't dial rpc client")
		}
		clients[name] = client
		return client
	}

	notifyInterval := time.Duration(0)
	facilitators := make([]*facilitator.Facilitator, 0, len(cfg.Facilitators))
	for _, facCfg := range cfg.Facilitators {
		facLogger := logger.WithField("aux_chain_id", facCfg.AuxChainID)
		originClient := clientFor(facCfg.Origin.ChainName, facCfg.Origin.Chain)
		auxClient := clientFor(facCfg.Auxiliary.ChainName, facCfg.Auxiliary.Chain)
		f, err2 := facilitator.NewFacilitator(facLogger, repo, facCfg, originClient, auxClient)
		if err2 != nil {
			facLogger.WithError(err2).Fatal("can't initialize facilitator")
		}
		facilitators = append(facilitators, f)
		if notifyInterval == 0 || facCfg.NotifyInterval < notifyInterval {
			notifyInterval = facCfg.NotifyInterval
		}
	}

	for _, f := range facilitators {
		if err := f.Start(ctx); err != nil {
			logger.WithError(err).Fatal("can't start facilitator")
		}
	}

	if notifyInterval == 0 {
		notifyInterval = 5 * time.Second
	}
	notifier := service.NewNotifier(repo, logger.WithField("service", "notifier"), notifyInterval)
	go notifier.Start(ctx)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	for range c {
		cancel()
		logger.Warn("caught CTRL-C, gracefully terminating")
		return
	}
}
