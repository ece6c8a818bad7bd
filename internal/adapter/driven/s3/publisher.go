// Package s3 implements the ResultPublisher port against Amazon S3.
package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ResultPublisher = (*Publisher)(nil)
	_ driven.ResultPublisher = (*Disabled)(nil)
)

// objectPutter is the slice of the S3 API the publisher uses; it exists so
// tests can substitute the SDK client.
type objectPutter interface {
	PutObject(ctx context.Context, input *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

// Publisher uploads result files to a fixed bucket with public-read ACL and
// returns their public URLs.
type Publisher struct {
	client objectPutter
	bucket string
	region string
}

// NewPublisher creates a Publisher using the default AWS credential chain.
func NewPublisher(ctx context.Context, bucket, region string) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &Publisher{
		client: awss3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
	}, nil
}

// NewPublisherWithClient creates a Publisher with an injected S3 client.
// This constructor is intended for testing.
func NewPublisherWithClient(client objectPutter, bucket, region string) *Publisher {
	return &Publisher{client: client, bucket: bucket, region: region}
}

// Publish uploads the local file under its base name and returns the public
// object URL.
func (p *Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	key := filepath.Base(localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = p.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to s3://%s: %w", key, p.bucket, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key), nil
}

// Disabled is the publisher wired when no bucket is configured. Every publish
// fails, which the controller treats as a degraded report, not a run failure.
type Disabled struct{}

// Publish always reports that publishing is not configured.
func (Disabled) Publish(context.Context, string) (string, error) {
	return "", fmt.Errorf("result publishing is not configured")
}
