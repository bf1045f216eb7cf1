package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiErr(code string) error {
	return fmt.Errorf("operation error: %w", &smithy.GenericAPIError{Code: code, Message: "test"})
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed no such bucket", &types.NoSuchBucket{}, true},
		{"typed no such key", fmt.Errorf("wrapped: %w", &types.NoSuchKey{}), true},
		{"typed not found", &types.NotFound{}, true},
		{"code NotFound", apiErr("NotFound"), true},
		{"code 404", apiErr("404"), true},
		{"access denied", apiErr("AccessDenied"), false},
		{"plain error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestIsBucketAlreadyOwned(t *testing.T) {
	assert.True(t, IsBucketAlreadyOwned(&types.BucketAlreadyOwnedByYou{}))
	assert.True(t, IsBucketAlreadyOwned(apiErr("BucketAlreadyOwnedByYou")))
	assert.False(t, IsBucketAlreadyOwned(apiErr("BucketAlreadyExists")))
	assert.False(t, IsBucketAlreadyOwned(nil))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such bucket", apiErr("NoSuchBucket"), ErrBucketNotFound},
		{"not found uses caller sentinel", apiErr("NoSuchKey"), ErrObjectNotFound},
		{"bucket not empty", apiErr("BucketNotEmpty"), ErrBucketNotEmpty},
		{"access denied", apiErr("AccessDenied"), ErrAccessDenied},
		{"forbidden", apiErr("Forbidden"), ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, ErrObjectNotFound)
			assert.ErrorIs(t, got, tt.want)

			var ae smithy.APIError
			assert.True(t, errors.As(got, &ae), "SDK error stays reachable")
		})
	}

	assert.Nil(t, translate(nil, ErrObjectNotFound))

	other := apiErr("SlowDown")
	assert.Equal(t, other, translate(other, ErrObjectNotFound))
}

func TestTypedErrors(t *testing.T) {
	cause := &causeError{sentinel: ErrAccessDenied, err: apiErr("AccessDenied")}

	bne := &BucketDoesNotExistError{Bucket: "b", Err: cause}
	ue := &UploadError{FilePath: "/tmp/f.csv", Bucket: "b", Key: "k", Err: bne}

	assert.ErrorIs(t, ue, ErrBucketNotFound)
	assert.ErrorIs(t, ue, ErrAccessDenied)
	assert.Equal(t, "failed to upload file '/tmp/f.csv' as 'b/k': bucket does not exist: 'b': "+cause.Error(), ue.Error())

	assert.Equal(t, "bucket does not exist: 'b'", (&BucketDoesNotExistError{Bucket: "b"}).Error())
	assert.Equal(t, "failed to upload 'b/k': invalid object key",
		(&UploadError{Bucket: "b", Key: "k", Err: ErrInvalidObjectKey}).Error())
	assert.Equal(t, "failed to download object 'b/k' to '/tmp/x': object does not exist",
		(&DownloadError{Bucket: "b", Key: "k", FilePath: "/tmp/x", Err: ErrObjectNotFound}).Error())
	assert.Equal(t, "failed to delete object 'b/k': access denied",
		(&DeleteObjectError{Bucket: "b", Key: "k", Err: ErrAccessDenied}).Error())
	assert.Equal(t, "failed to create bucket 'b': bucket already exists",
		(&CreateBucketError{Bucket: "b", Err: ErrBucketExisted}).Error())
	assert.Equal(t, "failed to delete bucket 'b': bucket is not empty",
		(&DeleteBucketError{Bucket: "b", Err: ErrBucketNotEmpty}).Error())
}
