package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrContentType = errors.New("s3: unsupported cover content type")

// coverTypes maps accepted upload content types to object key extensions.
var coverTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// Covers presigns direct browser uploads of book cover images to an
// S3-compatible bucket (AWS or Cloudflare R2).
type Covers struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
	ttl       time.Duration
}

type Upload struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Key         string            `json:"key"`
	Headers     map[string]string `json:"headers"`
	ContentType string            `json:"contentType"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

func NewCovers(ctx context.Context, o Options) (*Covers, error) {
	if o.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if o.PresignTTL <= 0 {
		o.PresignTTL = 15 * time.Minute
	}
	creds := credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, "")

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
		}
		opts.UsePathStyle = false
	})

	return &Covers{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    o.Bucket,
		ttl:       o.PresignTTL,
	}, nil
}

// CoverKey is covers/<bookID>/<random>.<ext>.
func CoverKey(bookID, contentType string) (string, error) {
	ext, ok := coverTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrContentType
	}
	return path.Join("covers", bookID, uuid.NewString()+"."+ext), nil
}

// PresignPut returns a PUT URL the browser uploads the cover to.
func (c *Covers) PresignPut(ctx context.Context, bookID, contentType string) (Upload, error) {
	key, err := CoverKey(bookID, contentType)
	if err != nil {
		return Upload{}, err
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	req, err := c.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return Upload{}, fmt.Errorf("failed to presign upload: %w", err)
	}
	return Upload{
		URL:         req.URL,
		Method:      req.Method,
		Key:         key,
		Headers:     map[string]string{"Content-Type": contentType},
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(c.ttl).UTC(),
	}, nil
}

// PresignGet returns a temporary download URL for a stored cover.
func (c *Covers) PresignGet(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, "covers/") {
		return "", fmt.Errorf("s3: %q is not a cover key", key)
	}
	req, err := c.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// Delete removes a cover that the backend refused to attach.
func (c *Covers) Delete(ctx context.Context, key string) error {
	_, err := c.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object %s: %w", key, err)
	}
	return nil
}
