package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
)

type presignEntry struct {
	url       string
	refreshAt time.Time
}

// PresignObject returns a GET URL for bucket/key valid for
// Option.PresignExpiry. URLs are cached and reissued once half of their
// lifetime has passed.
func (c *s3Client) PresignObject(ctx context.Context, bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("presign: %w", errMissingName(bucket))
	}

	cacheKey := bucket + "/" + key
	now := time.Now()

	c.presignMu.Lock()
	if v, ok := c.presignCache.Get(cacheKey); ok {
		entry := v.(presignEntry)
		if now.Before(entry.refreshAt) {
			c.presignMu.Unlock()
			return entry.url, nil
		}
		c.presignCache.Remove(cacheKey)
	}
	c.presignMu.Unlock()

	input := &s3v2.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	start := time.Now()
	resp, err := c.psClient.PresignGetObject(ctx, input)
	c.observe("presign", start, 0, err)
	if err != nil {
		warnAPIError(err, "Presign Object(%s) in Bucket(%s)", key, bucket)
		return "", fmt.Errorf("failed to presign %s: %w", ObjectPath(bucket, key), err)
	}

	c.presignMu.Lock()
	c.presignCache.Add(cacheKey, presignEntry{
		url:       resp.URL,
		refreshAt: now.Add(c.o.PresignExpiry / 2),
	})
	c.presignMu.Unlock()

	return resp.URL, nil
}
