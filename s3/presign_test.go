package s3

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresignObject(t *testing.T) {
	obs := &recordingObserver{}
	c, srv := newTestClient(t, WithObserver(obs))
	ctx := context.Background()

	raw, err := c.PresignObject(ctx, testBucket, "dir/file.csv")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/"+testBucket+"/dir/file.csv", u.Path)
	assert.Contains(t, srv.URL, u.Host)
	q := u.Query()
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.Contains(t, q.Get("X-Amz-Credential"), testAccessKey)

	again, err := c.PresignObject(ctx, testBucket, "dir/file.csv")
	require.NoError(t, err)
	assert.Equal(t, raw, again)
	assert.Len(t, obs.find("presign"), 1, "second call is served from the cache")

	// presigning is local, nothing reaches the server
	assert.Empty(t, srv.Requests())
}

func TestPresignObjectRefresh(t *testing.T) {
	c, _ := newTestClient(t, func(o *Option) { o.PresignExpiry = time.Hour })
	ctx := context.Background()

	c.presignCache.Add(testBucket+"/fresh", presignEntry{url: "cached", refreshAt: time.Now().Add(time.Minute)})
	c.presignCache.Add(testBucket+"/stale", presignEntry{url: "stale", refreshAt: time.Now().Add(-time.Second)})

	got, err := c.PresignObject(ctx, testBucket, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "cached", got)

	got, err = c.PresignObject(ctx, testBucket, "stale")
	require.NoError(t, err)
	assert.NotEqual(t, "stale", got)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))

	v, ok := c.presignCache.Get(testBucket + "/stale")
	require.True(t, ok)
	entry := v.(presignEntry)
	assert.Equal(t, got, entry.url)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), entry.refreshAt, time.Minute)
}

func TestPresignObjectMissingNames(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.PresignObject(context.Background(), "", "k")
	assert.ErrorIs(t, err, ErrInvalidBucketName)

	_, err = c.PresignObject(context.Background(), testBucket, "")
	assert.ErrorIs(t, err, ErrInvalidObjectKey)
}
