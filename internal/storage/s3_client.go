package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client implements Client on an S3 bucket. Keys are "{namespace}/{name}".
type S3Client struct {
	s3         *s3.Client
	presign    *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

// NewS3Client creates an S3Client. A non-empty endpoint switches to
// path-style addressing for S3-compatible servers.
func NewS3Client(cfg aws.Config, bucket, endpoint string, presignTTL time.Duration) *S3Client {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Client{
		s3:         client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}
}

func (c *S3Client) Upload(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    aws.String(ObjectKey(namespace, name)),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return mapAWSError(err)
	}
	return nil
}

func (c *S3Client) List(ctx context.Context, namespace string) ([]Object, error) {
	prefix := namespace + "/"
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: &c.bucket,
		Prefix: aws.String(prefix),
	})

	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapAWSError(err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Namespace: namespace,
				Name:      strings.TrimPrefix(aws.ToString(obj.Key), prefix),
			})
		}
	}
	return objects, nil
}

func (c *S3Client) Delete(ctx context.Context, obj Object) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    aws.String(obj.Key()),
	})
	if err != nil {
		return mapAWSError(err)
	}
	return nil
}

func (c *S3Client) DownloadURL(ctx context.Context, namespace, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     &c.bucket,
		Key:                        aws.String(ObjectKey(namespace, name)),
		ResponseContentDisposition: aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": name})),
	}, s3.WithPresignExpires(c.presignTTL))
	if err != nil {
		return "", mapAWSError(err)
	}
	return req.URL, nil
}

// mapAWSError converts AWS SDK errors to storage sentinel errors.
func mapAWSError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("s3: %w", err)
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrNotFound)
	case "NoSuchBucket":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrNoSuchBucket)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrAccessDenied)
	case "SlowDown", "RequestLimitExceeded":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrThrottled)
	default:
		return fmt.Errorf("s3 %s: %w", apiErr.ErrorCode(), err)
	}
}

// Compile-time check: S3Client implements Client.
var _ Client = (*S3Client)(nil)
