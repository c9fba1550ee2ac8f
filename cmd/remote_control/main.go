package main

import (
	"context"
	"dancavallaro.com/devicectl/pkg/config"
	"dancavallaro.com/devicectl/pkg/setup"
	"dancavallaro.com/devicectl/pkg/telemetry"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	withCapture := flag.Bool("capture", true, "capture device output and forward it to the capture topic")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("[remote_control] ")

	cfg, err := flags.Load()
	if err != nil {
		log.Fatal(err)
	}
	if !cfg.MQTT.Enabled() {
		log.Fatal("an MQTT broker is required, set --mqtt-address or mqtt.broker")
	}

	stack, err := setup.New(cfg, log.Default())
	if err != nil {
		log.Fatal(err)
	}
	stack.Events.LogTo(log.Default())

	ctl, err := stack.Controller()
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := stack.Shutdown(ctl); err != nil {
			log.Println(err)
		}
	}()
	if err := stack.RemoteControl(ctl); err != nil {
		log.Panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	var counter telemetry.LineCounter
	if *withCapture {
		sink, closeSink, err := stack.CaptureSink(nil)
		if err != nil {
			log.Panic(err)
		}
		defer closeSink()
		session, err := stack.CaptureEngine().Start(gctx, sink)
		if err != nil {
			log.Panic(err)
		}
		counter = session
		g.Go(func() error {
			// a failed capture is reported as an event; commands keep working
			<-gctx.Done()
			session.Stop()
			return nil
		})
	}
	stack.Background(gctx, g, counter)

	if err := g.Wait(); err != nil {
		log.Println(err)
	}
}
