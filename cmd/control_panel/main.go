package main

import (
	"context"
	"dancavallaro.com/devicectl/pkg/capture"
	"dancavallaro.com/devicectl/pkg/config"
	"dancavallaro.com/devicectl/pkg/events"
	"dancavallaro.com/devicectl/pkg/panel"
	"dancavallaro.com/devicectl/pkg/setup"
	"dancavallaro.com/devicectl/pkg/telemetry"
	"fmt"
	"github.com/gdamore/tcell/v2"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	withCapture := flag.Bool("capture", false, "capture device output to the log dir while the panel runs")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("[control_panel] ")

	cfg, err := flags.Load()
	if err != nil {
		log.Fatal(err)
	}
	stack, err := setup.New(cfg, log.Default())
	if err != nil {
		log.Fatal(err)
	}
	ctl, err := stack.Controller()
	if err != nil {
		log.Fatal(err)
	}
	if err := stack.RemoteControl(ctl); err != nil {
		log.Fatal(err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	p := panel.New(ctl, stack.Events, fmt.Sprintf("devicectl  %s", cfg.Serial.Port))
	stack.Events.Subscribe(p.Handle)
	stack.Events.Emit(events.Info, "System initialized...")
	stack.Events.Emit(events.Info, "Target Port: %s", cfg.Serial.Port)

	var session *capture.Session
	var counter telemetry.LineCounter
	closeSink := func() error { return nil }
	if *withCapture {
		var sink capture.Sink
		sink, closeSink, err = stack.CaptureSink(nil)
		if err != nil {
			log.Fatal(err)
		}
		session, err = stack.CaptureEngine().Start(ctx, sink)
		if err != nil {
			closeSink()
			log.Fatal(err)
		}
		counter = session
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Error creating screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Error initializing screen: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	stack.Background(gctx, g, counter)
	g.Go(func() error {
		defer cancel()
		return p.Run(gctx, screen)
	})
	if session != nil {
		g.Go(func() error {
			<-gctx.Done()
			session.Stop()
			return nil
		})
	}

	err = g.Wait()
	screen.Fini()
	closeSink()
	if shutdownErr := stack.Shutdown(ctl); shutdownErr != nil {
		log.Println(shutdownErr)
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
