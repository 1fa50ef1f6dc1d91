// Package main provides the sessiondemo CLI, a small harness that drives
// the Session Manager end to end against an in-memory fake driver so the
// checkout/bind/commit lifecycle can be exercised without a live mongod.
//
// Usage:
//
//	sessiondemo run --causal-consistency
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Sokol111/mongosession/pkg/manager"
	"github.com/Sokol111/mongosession/pkg/session"
	"github.com/Sokol111/mongosession/pkg/topology"
	"github.com/Sokol111/mongosession/pkg/wire"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sessiondemo",
		Short:   "Drive a sample transaction through the session core",
		Version: version,
	}

	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	var causal bool
	var wireVersion int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a sample WithTransaction call against a fake driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), causal, uint32(wireVersion))
		},
	}

	cmd.Flags().BoolVar(&causal, "causal-consistency", true, "enable causal consistency on the demo session")
	cmd.Flags().IntVar(&wireVersion, "wire-version", 13, "server maxWireVersion to simulate")

	return cmd
}

func runDemo(ctx context.Context, causal bool, wireVersion uint32) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("sessiondemo: create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	driver := wire.NewFakeDriver()
	driver.Reply = bson.Raw(must(bson.Marshal(bson.D{{Key: "ok", Value: 1}})))

	connProvide := func(_ context.Context) (session.Connection, error) {
		return wire.NewFakeConnection("demo-connection"), nil
	}
	pool := topology.NewPool(connProvide, driver, 10, 0, log)
	pool.SetWireVersion(wireVersion)

	mgr, err := manager.New(pool, log, tracenoop.NewTracerProvider(), noop.NewMeterProvider(), 3)
	if err != nil {
		return fmt.Errorf("sessiondemo: create manager: %w", err)
	}

	opts := session.Options{CausalConsistency: causal}

	result, err := mgr.WithTransaction(ctx, func(ctx context.Context, opts session.Options) (any, error) {
		log.Info("running user function inside transaction")
		_, bound, err := opts.Session.BindSession(ctx, session.Doc{{Key: "insert", Value: "demo"}})
		if err != nil {
			return nil, err
		}
		log.Info("statement bound to session", zap.Any("command", bound))
		return "transaction body executed", nil
	}, opts)
	if err != nil {
		return fmt.Errorf("sessiondemo: transaction failed: %w", err)
	}

	log.Info("transaction committed", zap.Any("result", result))
	for _, exec := range driver.Executions() {
		log.Info("command executed", zap.String("database", exec.Database), zap.Any("command", exec.Cmd))
	}

	return nil
}

func must(raw []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return raw
}
