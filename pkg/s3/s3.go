package s3

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config describes an S3-compatible endpoint such as MinIO or SeaweedFS.
type Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	DisableTLS     bool
	ForcePathStyle bool
	// PublicBaseURL is the browser-facing origin for public objects. Defaults to Endpoint.
	PublicBaseURL string
}

// Client is a thin wrapper around the AWS SDK v2 S3 client.
type Client struct {
	api        *s3.Client
	presign    *s3.PresignClient
	publicBase string
	pathStyle  bool
}

// New initialises a Client from cfg.
func New(ctx context.Context, cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	scheme := "https"
	if cfg.DisableTLS {
		scheme = "http"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		publicBase = strings.TrimRight(endpoint, "/")
	}

	return &Client{
		api:        client,
		presign:    s3.NewPresignClient(client),
		publicBase: publicBase,
		pathStyle:  cfg.ForcePathStyle,
	}, nil
}

// EnsureBucket creates bucket if it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if c == nil {
		return errors.New("nil client")
	}
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket}); err == nil {
		return nil
	}
	_, err := c.api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &bucket})
	var owned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return nil
	}
	return err
}

// PutObject uploads data to the given bucket/key with content type and checksum metadata.
func (c *Client) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType, sha256 string) error {
	if c == nil {
		return errors.New("nil client")
	}
	checksum, err := encodeSHA256(sha256)
	if err != nil {
		return err
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            &bucket,
		Key:               &key,
		Body:              r,
		ContentLength:     &size,
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    &checksum,
		Metadata: map[string]string{
			"sha256": sha256,
		},
	})
	return err
}

// PublicURL returns the unauthenticated URL of an object in a public-read bucket.
func (c *Client) PublicURL(bucket, key string) string {
	if c == nil {
		return ""
	}
	escaped := (&url.URL{Path: key}).EscapedPath()
	if c.pathStyle {
		return fmt.Sprintf("%s/%s/%s", c.publicBase, bucket, escaped)
	}
	u, err := url.Parse(c.publicBase)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s", c.publicBase, bucket, escaped)
	}
	u.Host = bucket + "." + u.Host
	return fmt.Sprintf("%s/%s", strings.TrimRight(u.String(), "/"), escaped)
}

// PresignGet generates a presigned GET URL for the provided key and TTL.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if c == nil {
		return "", errors.New("nil client")
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

func encodeSHA256(hexDigest string) (string, error) {
	if hexDigest == "" {
		return "", errors.New("sha256 digest required")
	}
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
