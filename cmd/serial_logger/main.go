package main

import (
	"context"
	"dancavallaro.com/devicectl/pkg/config"
	"dancavallaro.com/devicectl/pkg/setup"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	console := flag.Bool("console", false, "echo captured lines to stdout")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("[serial_logger] ")

	cfg, err := flags.Load()
	if err != nil {
		log.Fatal(err)
	}
	if flag.CommandLine.Changed("console") {
		cfg.Capture.Console = *console
	}

	stack, err := setup.New(cfg, log.Default())
	if err != nil {
		log.Fatal(err)
	}
	stack.Events.LogTo(log.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := stack.CaptureSink(os.Stdout)
	if err != nil {
		log.Fatal(err)
	}
	session, err := stack.CaptureEngine().Start(ctx, sink)
	if err != nil {
		closeSink()
		log.Fatal(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	stack.Background(gctx, g, session)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			session.Stop()
		case <-session.Done():
			// the stop event has already been logged; stay up until interrupted
			log.Println("Capture has ended, press Ctrl+C to exit")
			<-gctx.Done()
		}
		return nil
	})

	err = g.Wait()
	closeSink()
	stack.Shutdown(nil)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Captured %d lines, dropped %d chunks\n", session.Lines(), session.Dropped())
}
