// Package s3 reads transfer files from S3 and stores shared files there.
package s3

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptrace"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/http"
	"github.com/dropshare/dropget/internal/logging"
)

const defaultRegion = "us-east-1"

// Options configures a Client.
type Options struct {
	Region      string
	Endpoint    string // Custom endpoint for S3-compatible services
	PathStyle   bool
	AccessKeyID string
	SecretKey   string
	Anonymous   bool   // Unsigned requests, for public buckets
	Bucket      string // Default bucket for uploads
	HTTPClient  *nethttp.Client
	Logger      *logging.Logger
}

// OptionsFromConfig maps the [s3] section of cfg to client options.
func OptionsFromConfig(cfg *config.Config, httpClient *nethttp.Client, logger *logging.Logger) Options {
	return Options{
		Region:      cfg.S3Region,
		Endpoint:    cfg.S3Endpoint,
		PathStyle:   cfg.S3PathStyle,
		AccessKeyID: cfg.AWSAccessKeyID,
		SecretKey:   cfg.AWSSecretKey,
		Bucket:      cfg.ShareBucket,
		HTTPClient:  httpClient,
		Logger:      logger,
	}
}

// Client wraps the AWS S3 client with retries and a shared HTTP client.
//
// Thread-safe: All operations are safe for concurrent use.
type Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	logger  *logging.Logger
}

// NewClient creates an S3 client.
//
// Credentials come from Options when a key is given, otherwise from the
// default AWS chain (environment, shared config, instance role).
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	logger := logging.OrNop(opts.Logger)

	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Reuse one client so the connection pool survives across calls
		var err error
		httpClient, err = http.CreateOptimizedClient(nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
	}
	switch {
	case opts.Anonymous:
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case opts.AccessKeyID != "":
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretKey, ""),
		))
	}

	start := time.Now()
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	logger.Debug().Dur("took", time.Since(start)).Str("region", region).Msg("loaded AWS config")

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		logger:  logger,
	}, nil
}

// Bucket returns the default upload bucket.
func (c *Client) Bucket() string {
	return c.bucket
}

// RetryWithBackoff executes fn with exponential backoff retry logic.
func (c *Client) RetryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return http.ExecuteWithRetry(ctx, http.LoggedConfig(c.logger, "s3", operation), fn)
}

// TraceContext adds HTTP connection tracing when DEBUG_HTTP=true.
func (c *Client) TraceContext(ctx context.Context, operation string) context.Context {
	if os.Getenv("DEBUG_HTTP") != "true" {
		return ctx
	}

	var handshakeStart time.Time
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			c.logger.Debug().Str("op", operation).Bool("reused", info.Reused).Msg("got connection")
		},
		TLSHandshakeStart: func() {
			handshakeStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, _ error) {
			c.logger.Debug().Str("op", operation).Dur("took", time.Since(handshakeStart)).Msg("TLS handshake")
		},
	})
}

// GetObject opens an object for reading.
// A missing bucket or key is reported as *storage.StatusError wrapping
// storage.ErrObjectNotFound.
func (c *Client) GetObject(ctx context.Context, bucket, key string) (*s3.GetObjectOutput, error) {
	var resp *s3.GetObjectOutput
	err := c.RetryWithBackoff(ctx, "GetObject", func() error {
		r, err := c.client.GetObject(c.TraceContext(ctx, "GetObject"), &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return mapError("GetObject", err)
		}
		resp = r
		return nil
	})
	return resp, err
}

// PutObject uploads data to key in the default bucket.
func (c *Client) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	if c.bucket == "" {
		return fmt.Errorf("no upload bucket configured")
	}
	return c.RetryWithBackoff(ctx, "PutObject", func() error {
		_, err := c.client.PutObject(c.TraceContext(ctx, "PutObject"), &s3.PutObjectInput{
			Bucket:        aws.String(c.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String(contentType),
		})
		if err != nil {
			return mapError("PutObject", err)
		}
		return nil
	})
}

// PresignGet returns a GET link to key in the default bucket, valid for ttl.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// mapError turns SDK errors into storage errors with a status code.
func mapError(op string, err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return &storage.StatusError{Op: op, StatusCode: nethttp.StatusNotFound, Err: fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)}
	}

	var sc http.StatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		if code == nethttp.StatusNotFound {
			return &storage.StatusError{Op: op, StatusCode: code, Err: fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)}
		}
		return &storage.StatusError{Op: op, StatusCode: code, Err: err}
	}
	return err
}
