// Package setup wires the configured pieces together the same way for every binary.
package setup

import (
	"context"
	"dancavallaro.com/devicectl/awso"
	"dancavallaro.com/devicectl/pkg/capture"
	"dancavallaro.com/devicectl/pkg/config"
	"dancavallaro.com/devicectl/pkg/controller"
	"dancavallaro.com/devicectl/pkg/dispatch"
	"dancavallaro.com/devicectl/pkg/events"
	"dancavallaro.com/devicectl/pkg/mqttlink"
	"dancavallaro.com/devicectl/pkg/serialport"
	"dancavallaro.com/devicectl/pkg/telemetry"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"io"
	"log"
	"os"
	"time"
)

const identityTimeout = 10 * time.Second

type Stack struct {
	Config  *config.Config
	Events  *events.Log
	Opener  serialport.Opener
	Arbiter *serialport.Arbiter

	// nil unless enabled in the config
	Link      *mqttlink.Link
	Publisher telemetry.Publisher

	Topics mqttlink.Topics
	logger *log.Logger
}

// New connects to the broker and checks AWS credentials when those are configured.
func New(cfg *config.Config, logger *log.Logger) (*Stack, error) {
	s := &Stack{
		Config: cfg,
		Events: events.NewLog(),
		Opener: serialport.AlbenikOpener{},
		Topics: mqttlink.Topics{Prefix: cfg.MQTT.TopicPrefix, Device: cfg.MQTT.DeviceID},
		logger: logger,
	}
	if cfg.SharedPort() {
		s.Arbiter = serialport.NewArbiter()
	}

	if cfg.Metrics.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), identityTimeout)
		defer cancel()
		arn, err := awso.CallerIdentity(ctx, cfg.Metrics.Region)
		if err != nil {
			return nil, err
		}
		logger.Printf("Publishing metrics to %s as %s\n", cfg.Metrics.Namespace, arn)
		cw := telemetry.NewClientProvider(cfg.Metrics.Region)
		s.Publisher = telemetry.NewCloudwatchPublisher(cw, cfg.Metrics.Namespace, cfg.Metrics.Dimension)
	}

	if cfg.MQTT.Enabled() {
		link, err := mqttlink.Connect(mqttlink.Config{
			BrokerAddress: cfg.MQTT.Broker,
			Username:      cfg.MQTT.Username,
			Password:      cfg.MQTT.Password,
			Logger:        log.New(os.Stdout, "[mqtt] ", 0),
		})
		if err != nil {
			return nil, err
		}
		s.Link = link
	}
	return s, nil
}

func (s *Stack) Controller() (*controller.Controller, error) {
	table, err := s.Config.Table()
	if err != nil {
		return nil, err
	}
	var sender controller.Sender = dispatch.New(s.Config.ForDispatch(), s.Opener, s.Arbiter)
	if s.Publisher != nil {
		sender = telemetry.NewInstrumentedSender(sender, s.Publisher, s.Config.MQTT.DeviceID)
	}
	return controller.New(table, s.Config.DefaultMode, sender, s.Events, controller.Options{
		StrictStop: s.Config.Dispatch.StrictStop,
	})
}

func (s *Stack) CaptureEngine() *capture.Engine {
	return capture.NewEngine(s.Config.ForCapture(), s.Opener, s.Arbiter, s.Events)
}

// CaptureSink opens a new timestamped log file and fans lines out to it, to console
// when echo is enabled, and to the capture topic when MQTT is connected. The returned
// function closes the log file.
func (s *Stack) CaptureSink(console io.Writer) (capture.Sink, func() error, error) {
	file, err := capture.OpenLogFile(s.Config.Capture.LogDir, s.Config.Capture.FilePrefix, time.Now())
	if err != nil {
		return nil, nil, err
	}
	s.logger.Printf("Logging capture to %s\n", file.Path())

	sinks := capture.MultiSink{file}
	if s.Config.Capture.Console && console != nil {
		sinks = append(sinks, capture.NewWriterSink(console, ""))
	}
	if s.Link != nil {
		sinks = append(sinks, mqttlink.NewLinePublisher(s.Link, s.Topics.Capture()))
	}
	return sinks, file.Close, nil
}

// RemoteControl subscribes ctl to the control topic. It is a no-op without MQTT.
func (s *Stack) RemoteControl(ctl *controller.Controller) error {
	if s.Link == nil {
		return nil
	}
	s.logger.Printf("Listening for control messages on %s\n", s.Topics.Control())
	return s.Link.Subscribe(s.Topics.Control(), mqttlink.ControllerHandler{Controller: ctl, Events: s.Events})
}

// Background starts the event publisher and the metrics reporter on g, when enabled.
// Both stop when ctx ends. counter may be nil.
func (s *Stack) Background(ctx context.Context, g *errgroup.Group, counter telemetry.LineCounter) {
	if s.Link != nil {
		pub := mqttlink.NewEventPublisher(s.Link, s.Topics.Events(), s.logger)
		cancel := s.Events.Subscribe(pub.Handle)
		g.Go(func() error {
			defer cancel()
			return pub.Run(ctx)
		})
	}
	if s.Publisher != nil {
		reporter := telemetry.NewCaptureReporter(s.Publisher, s.Config.MQTT.DeviceID, s.Config.Metrics.Interval)
		g.Go(func() error {
			return reporter.Run(ctx, counter)
		})
	}
}

// Shutdown closes the controller, if any, then the broker connection.
func (s *Stack) Shutdown(ctl *controller.Controller) error {
	var err error
	if ctl != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, ctl.Close(ctx))
	}
	if s.Link != nil {
		s.logger.Println("Shutting down MQTT link now...")
		s.Link.Close()
	}
	return err
}
