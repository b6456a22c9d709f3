package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cuentacuentos/core/internal/config"
)

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func newS3Uploader(opts config.S3Options) (*s3Uploader, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKey)
	secretKey := strings.TrimSpace(opts.SecretKey)
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key/secret_key are required")
	}

	clientOpts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
		UsePathStyle: opts.UsePathStyle,
	}

	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		clientOpts.BaseEndpoint = aws.String(strings.TrimSuffix(endpoint, "/"))
		// Most non-AWS S3 endpoints only route path-style requests.
		clientOpts.UsePathStyle = true
	}

	return &s3Uploader{client: s3.New(clientOpts), bucket: bucket}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, key string, payload []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}
