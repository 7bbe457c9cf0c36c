// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/accumulatorvm/accumulatorvm"
)

const shutdownTimeout = 5 * time.Second

func main() {
	params, err := parseParams(os.Args[1:])
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if params.Version {
		fmt.Printf("%s@%s\n", accumulatorvm.Name, accumulatorvm.Version)
		os.Exit(0)
	}

	lvl, err := log.LvlFromString(params.LogLevel)
	if err != nil {
		fmt.Printf("couldn't parse log level: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	if err := run(params); err != nil {
		log.Error("accumulatorvm exited with an error", "err", err)
		os.Exit(1)
	}
}

func run(params Params) error {
	registry := prometheus.NewRegistry()

	db, err := openDB(params, registry)
	if err != nil {
		return err
	}
	defer db.Close()

	vm, err := accumulatorvm.New(db, params.VM, registry)
	if err != nil {
		return fmt.Errorf("couldn't start vm: %w", err)
	}
	defer vm.Shutdown()

	handler, err := accumulatorvm.NewHandler(vm)
	if err != nil {
		return fmt.Errorf("couldn't create rpc handler: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ext/"+accumulatorvm.Name, handler)
	mux.Handle("/ext/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              net.JoinHostPort(params.HTTPHost, strconv.Itoa(int(params.HTTPPort))),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Info("serving accumulatorvm", "addr", server.Addr, "version", accumulatorvm.Version)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func openDB(params Params, registry prometheus.Registerer) (database.Database, error) {
	switch params.DBType {
	case memDBType:
		log.Warn("using an in-memory database, state is lost on exit")
		return memdb.New(), nil
	default:
		log.Info("opening database", "type", params.DBType, "dir", params.DBDir)
		db, err := leveldb.New(params.DBDir, nil, logging.NoLog{}, "db", registry)
		if err != nil {
			return nil, fmt.Errorf("couldn't open leveldb at %s: %w", params.DBDir, err)
		}
		return db, nil
	}
}
