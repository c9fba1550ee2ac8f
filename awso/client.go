package awso

import (
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"
	"sync"
)

// ClientInvalidated wraps API errors caused by expired credentials. The cached client
// has already been dropped when it is returned, so the caller can simply retry.
var ClientInvalidated = errors.New("aws client invalidated")

var expiredCodes = map[string]bool{
	"ExpiredToken":          true,
	"ExpiredTokenException": true,
	"RequestExpired":        true,
	"InvalidClientTokenId":  true,
}

type ClientProvider[T any] struct {
	region      string
	buildClient func(cfg aws.Config) *T
	loadConfig  func(ctx context.Context, region string) (aws.Config, error)

	mu     sync.Mutex
	client *T
}

func NewClientProvider[T any](region string, buildClient func(cfg aws.Config) *T) *ClientProvider[T] {
	return &ClientProvider[T]{region: region, buildClient: buildClient, loadConfig: loadDefaultConfig}
}

func loadDefaultConfig(ctx context.Context, region string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// Client returns the cached client, building it from the default credential chain on
// first use or after Invalidate.
func (cp *ClientProvider[T]) Client(ctx context.Context) (*T, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.client == nil {
		cfg, err := cp.loadConfig(ctx, cp.region)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		cp.client = cp.buildClient(cfg)
	}
	return cp.client, nil
}

func (cp *ClientProvider[T]) Invalidate() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.client = nil
}

// Check passes err through, except that expired-credential errors invalidate the
// client and come back wrapped in ClientInvalidated.
func (cp *ClientProvider[T]) Check(err error) error {
	if !IsExpiredCredentials(err) {
		return err
	}
	cp.Invalidate()
	return fmt.Errorf("%w: %v", ClientInvalidated, err)
}

func IsExpiredCredentials(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return expiredCodes[apiErr.ErrorCode()]
	}
	return false
}
