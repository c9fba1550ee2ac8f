package telemetry

import (
	"context"
	"dancavallaro.com/devicectl/awso"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

type fakeCloudwatch struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	errs   []error
}

func (f *fakeCloudwatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type fakeProvider struct {
	api         *fakeCloudwatch
	clients     int
	invalidated int
}

func (p *fakeProvider) Client(context.Context) (CloudwatchAPI, error) {
	p.clients++
	return p.api, nil
}

func (p *fakeProvider) Check(err error) error {
	if awso.IsExpiredCredentials(err) {
		p.invalidated++
		return fmt.Errorf("%w: %v", awso.ClientInvalidated, err)
	}
	return err
}

func newPublisher(api *fakeCloudwatch) (*CloudwatchPublisher, *fakeProvider) {
	provider := &fakeProvider{api: api}
	pub := NewCloudwatchPublisher(provider, "Devicectl", "Device")
	pub.retryDelay = time.Millisecond
	return pub, provider
}

func TestPublishBuildsMetricDatum(t *testing.T) {
	api := &fakeCloudwatch{}
	pub, _ := newPublisher(api)

	require.NoError(t, pub.Publish(context.Background(), CommandsSent, "xirgo", 1))

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "Devicectl", aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 1)
	datum := in.MetricData[0]
	assert.Equal(t, CommandsSent, aws.ToString(datum.MetricName))
	assert.Equal(t, 1.0, aws.ToFloat64(datum.Value))
	require.Len(t, datum.Dimensions, 1)
	assert.Equal(t, "Device", aws.ToString(datum.Dimensions[0].Name))
	assert.Equal(t, "xirgo", aws.ToString(datum.Dimensions[0].Value))
}

func TestPublishRetriesOnceAfterInvalidation(t *testing.T) {
	api := &fakeCloudwatch{errs: []error{&smithy.GenericAPIError{Code: "ExpiredToken"}}}
	pub, provider := newPublisher(api)

	require.NoError(t, pub.Publish(context.Background(), Heartbeat, "xirgo", 1))
	assert.Len(t, api.inputs, 2)
	assert.Equal(t, 1, provider.invalidated)
	assert.Equal(t, 2, provider.clients)
}

func TestPublishGivesUpAfterSecondFailure(t *testing.T) {
	expired := &smithy.GenericAPIError{Code: "ExpiredToken"}
	api := &fakeCloudwatch{errs: []error{expired, expired}}
	pub, _ := newPublisher(api)

	err := pub.Publish(context.Background(), Heartbeat, "xirgo", 1)
	assert.ErrorIs(t, err, awso.ClientInvalidated)
	assert.Len(t, api.inputs, 2)
}

func TestPublishDoesNotRetryOtherErrors(t *testing.T) {
	api := &fakeCloudwatch{errs: []error{errors.New("throttled")}}
	pub, _ := newPublisher(api)

	assert.EqualError(t, pub.Publish(context.Background(), Heartbeat, "xirgo", 1), "throttled")
	assert.Len(t, api.inputs, 1)
}

type metric struct {
	name   string
	device string
	value  float64
}

type recordingPublisher struct {
	metrics chan metric
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{metrics: make(chan metric, 16)}
}

func (p *recordingPublisher) Publish(_ context.Context, name string, device string, value float64) error {
	p.metrics <- metric{name, device, value}
	return nil
}

func (p *recordingPublisher) next(t *testing.T) metric {
	t.Helper()
	select {
	case m := <-p.metrics:
		return m
	case <-time.After(time.Second):
		t.Fatal("no metric published")
		return metric{}
	}
}

type senderFunc func(ctx context.Context, command string) (int, error)

func (f senderFunc) Send(ctx context.Context, command string) (int, error) {
	return f(ctx, command)
}

func TestInstrumentedSenderCountsOutcomes(t *testing.T) {
	pub := newRecordingPublisher()
	fail := false
	sender := NewInstrumentedSender(senderFunc(func(_ context.Context, command string) (int, error) {
		if fail {
			return 0, errors.New("port gone")
		}
		return len(command), nil
	}), pub, "bench-1")

	n, err := sender.Send(context.Background(), "!yde\r\n")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, metric{CommandsSent, "bench-1", 1}, pub.next(t))

	fail = true
	_, err = sender.Send(context.Background(), "!ydd\r\n")
	assert.EqualError(t, err, "port gone")
	assert.Equal(t, metric{CommandFailures, "bench-1", 1}, pub.next(t))
}

type counter struct {
	lines uint64
}

func (c *counter) Lines() uint64 {
	return c.lines
}

func TestCaptureReporterPublishesDeltas(t *testing.T) {
	pub := newRecordingPublisher()
	r := NewCaptureReporter(pub, "bench-1", time.Minute)
	c := &counter{lines: 10}

	r.report(context.Background(), c)
	assert.Equal(t, metric{Heartbeat, "bench-1", 1}, pub.next(t))
	assert.Equal(t, metric{LinesCaptured, "bench-1", 10}, pub.next(t))

	c.lines = 14
	r.report(context.Background(), c)
	pub.next(t)
	assert.Equal(t, metric{LinesCaptured, "bench-1", 4}, pub.next(t))

	// a new session starts counting from zero again
	c.lines = 3
	r.report(context.Background(), c)
	pub.next(t)
	assert.Equal(t, metric{LinesCaptured, "bench-1", 3}, pub.next(t))
}

func TestCaptureReporterHeartbeatOnly(t *testing.T) {
	pub := newRecordingPublisher()
	r := NewCaptureReporter(pub, "bench-1", 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx, nil) }()

	assert.Equal(t, metric{Heartbeat, "bench-1", 1}, pub.next(t))
	cancel()
	assert.NoError(t, <-done)
}
