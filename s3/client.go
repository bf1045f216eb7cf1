// Copyright 2022 the go-s3fs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	usEast1 = "us-east-1"

	// maxDeleteBatch is the DeleteObjects limit of the S3 API.
	maxDeleteBatch = 1000
)

// Observer is notified once per remote operation.
type Observer interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// Client is the object-storage surface of the connector.
type Client interface {
	BucketExists(ctx context.Context, bucket string) bool
	CreateBucket(ctx context.Context, bucket string) (*Bucket, error)
	DeleteBucket(ctx context.Context, bucket string) error
	EmptyBucket(ctx context.Context, bucket string) (int, error)
	ListBuckets(ctx context.Context) ([]Bucket, error)

	UploadFile(ctx context.Context, filePath, bucket, key string) (*Object, error)
	UploadObject(ctx context.Context, bucket, key string, body io.Reader) (*Object, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) (*Object, error)
	UploadTable(ctx context.Context, table *Table, bucket, key string, opt *TableOption) (*Object, error)
	DownloadFile(ctx context.Context, bucket, key, filePath string) (*Object, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	HeadObject(ctx context.Context, bucket, key string) (*Object, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)
	PresignObject(ctx context.Context, bucket, key string) (string, error)
}

type s3Client struct {
	o          Option
	client     *s3v2.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
	psClient   *s3v2.PresignClient

	presignMu    sync.Mutex
	presignCache *lru.Cache

	observer Observer
	progress Accounter
}

var _ Client = (*s3Client)(nil)

type NoOpRateLimit struct{}

func (NoOpRateLimit) AddTokens(uint) error { return nil }
func (NoOpRateLimit) GetToken(context.Context, uint) (func() error, error) {
	return noOpToken, nil
}
func noOpToken() error { return nil }

type ExponentialJitterBackoff struct {
	minDelay           time.Duration
	maxBackoffAttempts int
}

func NewExponentialJitterBackoff(minDelay time.Duration, maxAttempts int) *ExponentialJitterBackoff {
	return &ExponentialJitterBackoff{minDelay, maxAttempts}
}

func (j *ExponentialJitterBackoff) BackoffDelay(attempt int, err error) (time.Duration, error) {
	if attempt > j.maxBackoffAttempts {
		attempt = j.maxBackoffAttempts
	}

	log.Debugf("retryCount: %d, err: %v", attempt, err)
	var jitter = float64(rand.Intn(120-80)+80) / 100
	retryTime := time.Duration(float64(j.minDelay.Nanoseconds()) * math.Pow(3, float64(attempt)) * jitter)

	// Cap retry time at 5 minutes to avoid too long a wait
	if retryTime > 5*time.Minute {
		retryTime = 5 * time.Minute
	}

	return retryTime, nil
}

// NewClient builds a Client from o, applying fns on top of it. A nil o
// starts from the defaults.
func NewClient(o *Option, fns ...OptionFunc) (Client, error) {
	opt := defaultOption
	if o != nil {
		opt = *o
	}
	for _, fn := range fns {
		fn(&opt)
	}
	opt.fill()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opt.Region),
		config.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxBackoffDelay(retry.NewStandard(func(so *retry.StandardOptions) {
				so.MaxAttempts = opt.MaxAttempts
				so.RateLimiter = NoOpRateLimit{}
				so.Backoff = NewExponentialJitterBackoff(25*time.Millisecond, 9)
			}), opt.MaxBackoff)
		}),
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		loadOpts = append(loadOpts, config.WithClientLogMode(aws.LogRetries))
	}
	if opt.AccessKey != "" && opt.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, opt.Token)))
	}
	if opt.URL != "" {
		endpoint := opt.URL
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		})
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}
	if opt.Timeout > 0 {
		loadOpts = append(loadOpts, config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(opt.Timeout)))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3v2.NewFromConfig(cfg, func(so *s3v2.Options) {
		so.UsePathStyle = opt.PathStyle
	})

	log.Debugf("S3 client created: region=%s endpoint=%q", opt.Region, opt.URL)
	return newS3Client(client, opt), nil
}

func newS3Client(client *s3v2.Client, opt Option) *s3Client {
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = opt.PartSize
		d.Concurrency = opt.Concurrency
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = opt.PartSize
		u.Concurrency = opt.Concurrency
	})

	psClient := s3v2.NewPresignClient(client, s3v2.WithPresignExpires(opt.PresignExpiry))

	c := &s3Client{
		o:            opt,
		client:       client,
		downloader:   downloader,
		uploader:     uploader,
		psClient:     psClient,
		presignCache: lru.New(defaultPresignEntries),
		observer:     opt.Observer,
		progress:     opt.Progress,
	}
	if c.progress == nil {
		c.progress = nopAccounter{}
	}
	return c
}

func (c *s3Client) observe(op string, start time.Time, bytes int64, err error) {
	if c.observer == nil {
		return
	}
	c.observer.Observe(op, bytes, err, time.Since(start))
}

// validBucketName applies the S3 naming rules: 3 to 63 characters of
// lowercase letters, digits, dots and hyphens, starting and ending with a
// letter or digit. Adjacent periods and IPv4 addresses are rejected.
func validBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if ip := net.ParseIP(name); ip != nil && ip.To4() != nil {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		alnum := (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9')
		if i == 0 || i == len(name)-1 {
			if !alnum {
				return false
			}
			continue
		}
		if !alnum && ch != '.' && ch != '-' {
			return false
		}
	}
	return true
}

func warnAPIError(err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		log.Warnf("%s with AWS S3 Error: %s %s", msg, apiErr.ErrorCode(), apiErr.ErrorMessage())
		return
	}
	log.Warnf("%s with Unknown Error: %v", msg, err)
}

// BucketExists reports whether bucket exists and is reachable with the
// configured credentials. Errors are logged and resolve to false.
func (c *s3Client) BucketExists(ctx context.Context, bucket string) bool {
	if bucket == "" {
		log.Warn("Bucket name is not specified")
		return false
	}

	input := &s3v2.HeadBucketInput{
		Bucket: aws.String(bucket),
	}

	start := time.Now()
	_, err := c.client.HeadBucket(ctx, input)
	c.observe("head_bucket", start, 0, err)
	if err != nil {
		if IsNotFound(err) {
			log.Debugf("Head Bucket(%s): not found", bucket)
		} else {
			warnAPIError(err, "Head Bucket(%s)", bucket)
		}
		return false
	}

	return true
}

// CreateBucket creates bucket in the configured region. An existing bucket
// owned by the caller yields the bucket together with ErrBucketExisted.
func (c *s3Client) CreateBucket(ctx context.Context, bucket string) (*Bucket, error) {
	if !validBucketName(bucket) {
		log.Warnf("Invalid bucket name: %q", bucket)
		return nil, &CreateBucketError{Bucket: bucket, Err: ErrInvalidBucketName}
	}

	if c.BucketExists(ctx, bucket) {
		log.Warnf("Cannot create the bucket. A bucket with the name '%s' already exists.", bucket)
		return &Bucket{Name: bucket}, &CreateBucketError{Bucket: bucket, Err: ErrBucketExisted}
	}

	return c.createBucket(ctx, bucket)
}

// createBucket issues CreateBucket without checking for the bucket first.
func (c *s3Client) createBucket(ctx context.Context, bucket string) (*Bucket, error) {
	input := &s3v2.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// us-east-1 rejects an explicit location constraint.
	if c.o.Region != usEast1 {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.o.Region),
		}
	}

	start := time.Now()
	_, err := c.client.CreateBucket(ctx, input)
	c.observe("create_bucket", start, 0, err)
	if err != nil {
		switch {
		case IsBucketAlreadyOwned(err):
			log.Warnf("Bucket(%s) already owned by you", bucket)
			return &Bucket{Name: bucket}, &CreateBucketError{Bucket: bucket, Err: &causeError{sentinel: ErrBucketExisted, err: err}}
		case isBucketAlreadyExists(err):
			warnAPIError(err, "Create Bucket(%s)", bucket)
			return nil, &CreateBucketError{Bucket: bucket, Err: &causeError{sentinel: ErrBucketNameTaken, err: err}}
		}
		warnAPIError(err, "Create Bucket(%s)", bucket)
		return nil, &CreateBucketError{Bucket: bucket, Err: translate(err, ErrBucketNotFound)}
	}

	log.Infof("Bucket created: %s", bucket)
	return &Bucket{
		Name:         bucket,
		CreationDate: time.Now().UTC(),
	}, nil
}

// ensureBucket creates bucket when it is missing. Failures are logged and
// returned; callers still attempt their write since HeadBucket may be
// denied while PutObject is allowed.
func (c *s3Client) ensureBucket(ctx context.Context, bucket string) error {
	if c.BucketExists(ctx, bucket) {
		return nil
	}
	if !validBucketName(bucket) {
		log.Warnf("Invalid bucket name: %q", bucket)
		return &CreateBucketError{Bucket: bucket, Err: ErrInvalidBucketName}
	}
	_, err := c.createBucket(ctx, bucket)
	if err != nil && !errors.Is(err, ErrBucketExisted) {
		log.Warnf("Bucket(%s) is missing and could not be created: %v", bucket, err)
		return err
	}
	return nil
}

// DeleteBucket removes an empty bucket.
func (c *s3Client) DeleteBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		log.Warn("Bucket name is not specified")
		return &DeleteBucketError{Bucket: bucket, Err: ErrInvalidBucketName}
	}

	input := &s3v2.DeleteBucketInput{
		Bucket: aws.String(bucket),
	}

	start := time.Now()
	_, err := c.client.DeleteBucket(ctx, input)
	c.observe("delete_bucket", start, 0, err)
	if err != nil {
		warnAPIError(err, "Delete Bucket(%s)", bucket)
		return &DeleteBucketError{Bucket: bucket, Err: translate(err, ErrBucketNotFound)}
	}

	log.Infof("Bucket deleted: %s", bucket)
	return nil
}

// EmptyBucket deletes every object in bucket, one DeleteObjects batch per
// listing page with at most Option.Concurrency batches in flight. It
// returns the number of deleted objects; per-key failures are combined
// into the returned error.
func (c *s3Client) EmptyBucket(ctx context.Context, bucket string) (int, error) {
	if bucket == "" {
		return 0, &DeleteBucketError{Bucket: bucket, Err: ErrInvalidBucketName}
	}

	var (
		mu      sync.Mutex
		deleted int
		errs    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.o.Concurrency)

	paginator := s3v2.NewListObjectsV2Paginator(c.client, &s3v2.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: maxDeleteBatch,
	})

	var listErr error
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(gctx)
		if err != nil {
			listErr = translate(err, ErrBucketNotFound)
			break
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, item := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: item.Key})
		}
		if len(ids) == 0 {
			continue
		}

		g.Go(func() error {
			start := time.Now()
			out, err := c.client.DeleteObjects(gctx, &s3v2.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{Objects: ids, Quiet: true},
			})
			c.observe("delete_objects", start, 0, err)
			if err != nil {
				warnAPIError(err, "Delete Objects from Bucket(%s)", bucket)
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			deleted += len(ids) - len(out.Errors)
			for _, e := range out.Errors {
				errs = multierr.Append(errs, fmt.Errorf("%s: %s %s",
					aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message)))
			}
			return nil
		})
	}

	err := multierr.Combine(listErr, g.Wait(), errs)
	if err != nil {
		return deleted, &DeleteBucketError{Bucket: bucket, Err: err}
	}

	log.Infof("Bucket emptied: %s (%d objects)", bucket, deleted)
	return deleted, nil
}

// ListBuckets returns the buckets of the account in service order.
func (c *s3Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	start := time.Now()
	out, err := c.client.ListBuckets(ctx, &s3v2.ListBucketsInput{})
	c.observe("list_buckets", start, 0, err)
	if err != nil {
		warnAPIError(err, "List Buckets")
		return nil, fmt.Errorf("failed to list buckets: %w", translate(err, ErrBucketNotFound))
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, Bucket{
			Name:         aws.ToString(b.Name),
			CreationDate: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}
