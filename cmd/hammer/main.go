package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/kerinin/hmsearch/registry"
	hmhttp "github.com/kerinin/hmsearch/transport/http"
)

var gitCommitSHA = ""

func main() {
	// set up a context that is canceled when the process is interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	var (
		dataDir   string
		bind      string
		bits      int
		tolerance int
		verbose   bool
	)

	app := &cli.App{
		Name:        "hammer",
		Version:     gitCommitSHA,
		Description: "Hamming-distance fingerprint index with an HTTP/JSON interface.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "If set, indexes are persisted under the given path (if unset, indexes live in memory)",
				Destination: &dataDir,
			},
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Host & port to bind to",
				Value:       "localhost:3000",
				Destination: &bind,
			},
			&cli.IntFlag{
				Name:        "bits",
				Usage:       "Default number of bits to index",
				Value:       64,
				Destination: &bits,
			},
			&cli.IntFlag{
				Name:        "tolerance",
				Usage:       "Default match tolerance in bits",
				Value:       7,
				Destination: &tolerance,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "Enable debug logging",
				Destination: &verbose,
			},
		},
		Before: func(c *cli.Context) error {
			if verbose {
				logging.SetAllLoggers(logging.LevelDebug)
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			reg, err := registry.New(dataDir, registry.DefaultMaxOpen)
			if err != nil {
				return fmt.Errorf("failed to build index registry: %w", err)
			}

			if dataDir != "" {
				klog.Infof("persisting indexes under %s", dataDir)
			} else {
				klog.Info("running with in-memory indexes")
			}
			klog.Infof("defaults: bits=%d tolerance=%d", bits, tolerance)

			srv := hmhttp.NewServer(reg, hmhttp.Defaults{Bits: bits, Tolerance: tolerance})
			if err := srv.ListenAndServe(c.Context, bind); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}
