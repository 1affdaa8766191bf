// Copyright 2024 DataFlood Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// DataFlood serves synthesized MongoDB collections backed by statistical
// models instead of stored documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/DataFlood/DataFlood/internal/build/version"
	"github.com/DataFlood/DataFlood/internal/clientconn"
	"github.com/DataFlood/DataFlood/internal/collection"
	"github.com/DataFlood/DataFlood/internal/cursor"
	"github.com/DataFlood/DataFlood/internal/handler"
	"github.com/DataFlood/DataFlood/internal/storage"
	"github.com/DataFlood/DataFlood/internal/util/debug"
	"github.com/DataFlood/DataFlood/internal/util/logging"
)

// The cli struct represents all command-line fields and flags.
//
//nolint:lll // some tags are long
var cli struct {
	Version  bool   `default:"false"  help:"Print version to stdout and exit." env:"-"`
	StateDir string `default:"data"   help:"Directory for model files."`

	Listen struct {
		Addr string `default:"127.0.0.1:27017" help:"Listen TCP address."`
	} `embed:"" prefix:"listen-"`

	DebugAddr string `default:"127.0.0.1:8088" help:"Listen address for HTTP handlers for metrics, pprof, etc."`

	Log struct {
		Level string `default:"info"  help:"Log level: 'debug', 'info', 'warn', 'error'."`
		UUID  bool   `default:"false" help:"Add instance UUID to all log messages." negatable:""`
	} `embed:"" prefix:"log-"`

	Models struct {
		CacheSize      int `default:"0" help:"Maximum models kept in memory; 0 means unlimited."`
		TrainThreshold int `default:"0" help:"Buffered inserts before a model is trained; 0 means the default."`
		CountSurrogate int `default:"0" help:"Count reported for trained collections; 0 means the default."`
	} `embed:"" prefix:"models-"`

	Cursors struct {
		Max         int           `default:"0" help:"Maximum open cursors; 0 means the default."`
		IdleTimeout time.Duration `default:"0" help:"Idle cursor timeout; 0 means the default."`
	} `embed:"" prefix:"cursors-"`
}

var kongOptions = []kong.Option{
	kong.DefaultEnvars("DATAFLOOD"),
}

func main() {
	kong.Parse(&cli, kongOptions...)

	run()
}

// setupLogger setups zap logger.
func setupLogger() *zap.Logger {
	info := version.Get()

	startupFields := []zap.Field{
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.Bool("debug", info.Debug),
	}

	logUUID := uuid.NewString()

	// unless requested, don't add UUID to all messages, but log it once at startup
	if !cli.Log.UUID {
		startupFields = append(startupFields, zap.String("uuid", logUUID))
		logUUID = ""
	}

	level, err := zapcore.ParseLevel(cli.Log.Level)
	if err != nil {
		log.Fatal(err)
	}

	l := logging.Setup(level, logUUID)

	l.Info("Starting DataFlood "+info.Version+"...", startupFields...)

	return l
}

// run sets up the environment based on provided flags and runs DataFlood.
func run() {
	info := version.Get()

	if cli.Version {
		fmt.Fprintln(os.Stdout, "version:", info.Version)
		fmt.Fprintln(os.Stdout, "commit:", info.Commit)

		return
	}

	logger := setupLogger()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf)); err != nil {
		logger.Sugar().Warnf("Failed to set GOMAXPROCS: %s.", err)
	}

	stateDir, err := filepath.Abs(cli.StateDir)
	if err != nil {
		logger.Sugar().Fatalf("Failed to resolve state directory: %s.", err)
	}

	backend, err := storage.New(stateDir, cli.Models.CacheSize, logger.Named("storage"))
	if err != nil {
		logger.Sugar().Fatalf("Failed to open state directory: %s.", err)
	}

	registry := collection.NewRegistry(backend, &collection.RegistryOpts{
		TrainThreshold: cli.Models.TrainThreshold,
		CountSurrogate: int64(cli.Models.CountSurrogate),
	}, logger.Named("collection"))

	cursors := cursor.NewRegistry(cli.Cursors.Max, cli.Cursors.IdleTimeout, logger.Named("cursor"))

	h := handler.New(&handler.NewOpts{
		L:        logger.Named("handler"),
		Registry: registry,
		Cursors:  cursors,
	})

	l := clientconn.NewListener(&clientconn.NewListenerOpts{
		ListenAddr: cli.Listen.Addr,
		Handler:    h,
		Logger:     logger.Named("clientconn"),
	})

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		backend,
		registry,
		cursors,
		h,
		l,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Stopping...")
	}()

	var wg sync.WaitGroup

	// https://github.com/alecthomas/kong/issues/389
	if cli.DebugAddr != "" && cli.DebugAddr != "-" {
		wg.Add(1)

		go func() {
			defer wg.Done()
			debug.RunHandler(ctx, cli.DebugAddr, metricsRegistry, logger.Named("debug"))
		}()
	}

	err = l.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info("Listener stopped")
	} else {
		logger.Error("Listener stopped", zap.Error(err))
	}

	stop()

	wg.Wait()
}
