package main

import (
	"codeberg.org/miketth/xkbtray/pkg/historystore/sqlite"
	"context"
	"errors"
	"flag"
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log"
	"os"
	"time"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	path := flag.String("path", "", "path to the history database")
	limit := flag.Int("limit", 20, "number of switches to print, 0 for all")
	schema := flag.Bool("schema", false, "print the schema instead of the switches")
	debug := flag.Bool("debug", false, "use debug level logging")
	flag.Parse()

	if *path == "" {
		return errors.New("missing -path flag")
	}

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	store, err := sqlite.NewSwitchStore(*path, log)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if *schema {
		version, err := store.SchemaVersion()
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		fmt.Fprintf(os.Stdout, "-- schema version %d\n\n", version)

		statements, err := store.Schema(ctx)
		if err != nil {
			return fmt.Errorf("dump schema: %w", err)
		}
		for _, stmt := range statements {
			fmt.Fprintf(os.Stdout, "%s;\n\n", stmt)
		}
		return nil
	}

	switches, err := store.RecentSwitches(ctx, *limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	for _, sw := range switches {
		fmt.Fprintf(os.Stdout, "%s\t%d\t%s\n", sw.At.Format(time.RFC3339), sw.Index, sw.Label)
	}

	return nil
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stderr"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
