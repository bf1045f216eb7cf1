package s3

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	ErrInvalidBucketName = errors.New("invalid bucket name")
	ErrInvalidObjectKey  = errors.New("invalid object key")
	ErrBucketExisted     = errors.New("bucket already exists")
	ErrBucketNameTaken   = errors.New("bucket name is owned by another account")
	ErrBucketNotFound    = errors.New("bucket does not exist")
	ErrBucketNotEmpty    = errors.New("bucket is not empty")
	ErrObjectNotFound    = errors.New("object does not exist")
	ErrAccessDenied      = errors.New("access denied")
)

// BucketDoesNotExistError reports a bucket that is missing and could not be created.
type BucketDoesNotExistError struct {
	Bucket string
	Err    error
}

func (e *BucketDoesNotExistError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bucket does not exist: '%s'", e.Bucket)
	}
	return fmt.Sprintf("bucket does not exist: '%s': %v", e.Bucket, e.Err)
}

func (e *BucketDoesNotExistError) Unwrap() error { return e.Err }

func (e *BucketDoesNotExistError) Is(target error) bool { return target == ErrBucketNotFound }

type CreateBucketError struct {
	Bucket string
	Err    error
}

func (e *CreateBucketError) Error() string {
	return fmt.Sprintf("failed to create bucket '%s': %v", e.Bucket, e.Err)
}

func (e *CreateBucketError) Unwrap() error { return e.Err }

type DeleteBucketError struct {
	Bucket string
	Err    error
}

func (e *DeleteBucketError) Error() string {
	return fmt.Sprintf("failed to delete bucket '%s': %v", e.Bucket, e.Err)
}

func (e *DeleteBucketError) Unwrap() error { return e.Err }

type UploadError struct {
	FilePath string
	Bucket   string
	Key      string
	Err      error
}

func (e *UploadError) Error() string {
	if e.FilePath == "" {
		return fmt.Sprintf("failed to upload '%s/%s': %v", e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("failed to upload file '%s' as '%s/%s': %v", e.FilePath, e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type DownloadError struct {
	Bucket   string
	Key      string
	FilePath string
	Err      error
}

func (e *DownloadError) Error() string {
	if e.FilePath == "" {
		return fmt.Sprintf("failed to download object '%s/%s': %v", e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("failed to download object '%s/%s' to '%s': %v", e.Bucket, e.Key, e.FilePath, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

type DeleteObjectError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *DeleteObjectError) Error() string {
	return fmt.Sprintf("failed to delete object '%s/%s': %v", e.Bucket, e.Key, e.Err)
}

func (e *DeleteObjectError) Unwrap() error { return e.Err }

// apiCode returns the service error code of err, or "" for transport errors.
func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err means the bucket or the object is missing.
// Typed SDK errors are checked first, then the raw error code for
// S3-compatible services that do not model them.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	switch apiCode(err) {
	case "NotFound", "NoSuchBucket", "NoSuchKey", "404":
		return true
	}
	return false
}

// IsBucketAlreadyOwned reports whether a create failed because we already own the bucket.
func IsBucketAlreadyOwned(err error) bool {
	if err == nil {
		return false
	}
	var baoby *types.BucketAlreadyOwnedByYou
	if errors.As(err, &baoby) {
		return true
	}
	return apiCode(err) == "BucketAlreadyOwnedByYou"
}

func isBucketAlreadyExists(err error) bool {
	var bae *types.BucketAlreadyExists
	if errors.As(err, &bae) {
		return true
	}
	return apiCode(err) == "BucketAlreadyExists"
}

func isNoSuchBucket(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	return apiCode(err) == "NoSuchBucket"
}

func isBucketNotEmpty(err error) bool {
	return apiCode(err) == "BucketNotEmpty"
}

func isAccessDenied(err error) bool {
	switch apiCode(err) {
	case "AccessDenied", "Forbidden", "403":
		return true
	}
	return false
}

// translate maps a raw SDK error onto the package sentinels while keeping
// the SDK error reachable through errors.As.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case isNoSuchBucket(err):
		return &causeError{sentinel: ErrBucketNotFound, err: err}
	case IsNotFound(err):
		return &causeError{sentinel: notFound, err: err}
	case isBucketNotEmpty(err):
		return &causeError{sentinel: ErrBucketNotEmpty, err: err}
	case isAccessDenied(err):
		return &causeError{sentinel: ErrAccessDenied, err: err}
	}
	return err
}

// causeError pairs a package sentinel with the SDK error behind it.
type causeError struct {
	sentinel error
	err      error
}

func (e *causeError) Error() string {
	return fmt.Sprintf("%v: %v", e.sentinel, e.err)
}

func (e *causeError) Is(target error) bool { return target == e.sentinel }

func (e *causeError) Unwrap() error { return e.err }
