package telemetry

import (
	"context"
	"dancavallaro.com/devicectl/awso"
	"errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"log"
	"time"
)

const (
	CommandsSent    = "CommandsSent"
	CommandFailures = "CommandFailures"
	LinesCaptured   = "LinesCaptured"
	Heartbeat       = "Heartbeat"
)

// Publisher records a single metric value for a device.
type Publisher interface {
	Publish(ctx context.Context, metric string, device string, value float64) error
}

type CloudwatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudwatchClientProvider hands out a client and turns expired-credential errors
// into awso.ClientInvalidated. *awso.ClientProvider[cloudwatch.Client] satisfies it
// through NewClientProvider.
type CloudwatchClientProvider interface {
	Client(ctx context.Context) (CloudwatchAPI, error)
	Check(err error) error
}

type clientProvider struct {
	cp *awso.ClientProvider[cloudwatch.Client]
}

func NewClientProvider(region string) CloudwatchClientProvider {
	return clientProvider{awso.NewClientProvider(region, func(cfg aws.Config) *cloudwatch.Client {
		log.Println("Creating new Cloudwatch client")
		return cloudwatch.NewFromConfig(cfg)
	})}
}

func (p clientProvider) Client(ctx context.Context) (CloudwatchAPI, error) {
	client, err := p.cp.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (p clientProvider) Check(err error) error {
	return p.cp.Check(err)
}

type CloudwatchPublisher struct {
	cw              CloudwatchClientProvider
	metricNamespace string
	deviceDimension string
	retryDelay      time.Duration
}

func NewCloudwatchPublisher(cw CloudwatchClientProvider, metricNamespace string, deviceDimension string) *CloudwatchPublisher {
	return &CloudwatchPublisher{cw, metricNamespace, deviceDimension, 5 * time.Second}
}

func (pub *CloudwatchPublisher) Publish(ctx context.Context, metric string, device string, value float64) error {
	if err := pub.publish(ctx, metric, device, value); err != nil {
		if !errors.Is(err, awso.ClientInvalidated) {
			return err
		}

		log.Printf("IAM creds are expired, sleeping for %v then retrying\n", pub.retryDelay)
		select {
		case <-time.After(pub.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}

		return pub.publish(ctx, metric, device, value)
	}
	return nil
}

func (pub *CloudwatchPublisher) publish(ctx context.Context, metric string, device string, value float64) error {
	client, err := pub.cw.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(pub.metricNamespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metric),
				Dimensions: []types.Dimension{
					{
						Name:  aws.String(pub.deviceDimension),
						Value: aws.String(device),
					},
				},
				Value: aws.Float64(value),
			},
		},
	})
	return pub.cw.Check(err)
}
