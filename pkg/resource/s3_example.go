//go:build s3example
// +build s3example

// This file provides example S3-backed resource constructors.
// It is excluded from regular builds because it requires the AWS SDK.
//
// To use this in your project, copy this file and add the AWS SDK:
//   go get github.com/aws/aws-sdk-go-v2
//   go get github.com/aws/aws-sdk-go-v2/config
//   go get github.com/aws/aws-sdk-go-v2/service/s3

package resource

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Object returns a resource holding the contents of an S3 object.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	client := s3.NewFromConfig(cfg)
//	manifest := resource.S3Object(client, "my-bucket", "config/manifest.json")
//
//	synapse.CreateEffect(func() synapse.Cleanup {
//	    if !manifest.Loading() && manifest.Err() == nil {
//	        apply(manifest.Data())
//	    }
//	    return nil
//	})
func S3Object(client *s3.Client, bucket, key string, opts ...Option[[]byte]) *Resource[[]byte] {
	return New(func() ([]byte, error) {
		return fetchS3Object(client, bucket, key)
	}, opts...)
}

// S3ObjectWithKey returns a resource that re-fetches whenever the reactive
// key function yields a different object key.
//
//	selected := synapse.NewSignal("reports/2026-01.csv")
//	report := resource.S3ObjectWithKey(client, "my-bucket", selected.Get)
//	...
//	selected.Set("reports/2026-02.csv") // triggers a refetch
func S3ObjectWithKey(client *s3.Client, bucket string, key func() string, opts ...Option[[]byte]) *Resource[[]byte] {
	return NewWithKey(key, func(k string) ([]byte, error) {
		return fetchS3Object(client, bucket, k)
	}, opts...)
}

func fetchS3Object(client *s3.Client, bucket, key string) ([]byte, error) {
	out, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}
