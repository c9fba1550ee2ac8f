package awso

import (
	"context"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentity returns the ARN the default credential chain resolves to. The
// binaries call it once at startup so bad credentials fail fast instead of on the
// first metric.
func CallerIdentity(ctx context.Context, region string) (string, error) {
	cp := NewClientProvider(region, func(cfg aws.Config) *sts.Client {
		return sts.NewFromConfig(cfg)
	})
	client, err := cp.Client(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", cp.Check(err)
	}
	return aws.ToString(resp.Arn), nil
}
