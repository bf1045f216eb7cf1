// Copyright 2022 the go-s3fs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ThierryZhou/go-s3connector/fs"
)

const progressNameWidth = 64

type putRequest struct {
	filePath        string
	bucket          string
	key             string
	body            io.Reader
	size            int64
	contentType     string
	contentEncoding string
}

// UploadFile uploads the local file at filePath to bucket/key, creating the
// bucket when it is missing. An empty key defaults to the file's base name.
func (c *s3Client) UploadFile(ctx context.Context, filePath, bucket, key string) (obj *Object, err error) {
	local, err := fs.ExpandPath(filePath)
	if err != nil {
		return nil, &UploadError{FilePath: filePath, Bucket: bucket, Key: key, Err: err}
	}

	if key == "" {
		key = filepath.Base(local)
	}

	info, err := fs.RegularFile(local)
	if err != nil {
		log.Warnf("Upload File(%s): %v", local, err)
		return nil, &UploadError{FilePath: local, Bucket: bucket, Key: key, Err: err}
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, &UploadError{FilePath: local, Bucket: bucket, Key: key, Err: err}
	}
	defer fs.CheckClose(f, &err)

	return c.upload(ctx, &putRequest{
		filePath:    local,
		bucket:      bucket,
		key:         key,
		body:        f,
		size:        info.Size(),
		contentType: mime.TypeByExtension(filepath.Ext(local)),
	})
}

// UploadObject streams body to bucket/key through the multipart uploader.
func (c *s3Client) UploadObject(ctx context.Context, bucket, key string, body io.Reader) (*Object, error) {
	return c.upload(ctx, &putRequest{
		bucket: bucket,
		key:    key,
		body:   body,
		size:   -1,
	})
}

func (c *s3Client) PutObject(ctx context.Context, bucket, key string, data []byte) (*Object, error) {
	return c.upload(ctx, &putRequest{
		bucket: bucket,
		key:    key,
		body:   bytes.NewReader(data),
		size:   int64(len(data)),
	})
}

func (c *s3Client) upload(ctx context.Context, req *putRequest) (*Object, error) {
	fail := func(err error) (*Object, error) {
		return nil, &UploadError{FilePath: req.filePath, Bucket: req.bucket, Key: req.key, Err: err}
	}

	if req.bucket == "" {
		log.Warn("Bucket name is not specified")
		return fail(ErrInvalidBucketName)
	}
	if req.key == "" {
		log.Warn("Object name is not specified")
		return fail(ErrInvalidObjectKey)
	}

	createErr := c.ensureBucket(ctx, req.bucket)

	input := &s3v2.PutObjectInput{
		Bucket: aws.String(req.bucket),
		Key:    aws.String(req.key),
	}
	if req.contentType != "" {
		input.ContentType = aws.String(req.contentType)
	}
	if req.contentEncoding != "" {
		input.ContentEncoding = aws.String(req.contentEncoding)
	}

	c.progress.Start(shortenName(ObjectPath(req.bucket, req.key), progressNameWidth), req.size)
	ar := newAccountReader(req.body, c.progress)
	input.Body = ar

	start := time.Now()
	_, err := c.uploader.Upload(ctx, input)
	c.observe("upload", start, ar.Bytes(), err)
	c.progress.Done(err)
	if err != nil {
		var failure manager.MultiUploadFailure
		if errors.As(err, &failure) {
			log.Warnf("Upload Object(%s) in Bucket(%s) failure UploadID=%s, %s", req.key, req.bucket, failure.UploadID(), failure.Error())
		} else {
			warnAPIError(err, "Upload Object(%s) in Bucket(%s)", req.key, req.bucket)
		}

		if IsNotFound(err) {
			if createErr == nil {
				createErr = err
			}
			return fail(&BucketDoesNotExistError{Bucket: req.bucket, Err: createErr})
		}
		return fail(translate(err, ErrBucketNotFound))
	}

	log.Infof("File uploaded: %s/%s", req.bucket, req.key)
	return &Object{
		Bucket:      req.bucket,
		Key:         req.key,
		Size:        ar.Bytes(),
		ContentType: req.contentType,
	}, nil
}

// DownloadFile writes bucket/key to filePath. An empty filePath defaults to
// the key's base name in the working directory. The object is staged in a
// temporary file next to filePath so a failed transfer never clobbers an
// existing file.
func (c *s3Client) DownloadFile(ctx context.Context, bucket, key, filePath string) (obj *Object, err error) {
	if bucket == "" || key == "" {
		log.Warn("Bucket name / Object name is not specified")
		return nil, &DownloadError{Bucket: bucket, Key: key, FilePath: filePath, Err: errMissingName(bucket)}
	}

	if filePath == "" {
		filePath = path.Base(key)
	}
	local, err := fs.ExpandPath(filePath)
	if err != nil {
		return nil, &DownloadError{Bucket: bucket, Key: key, FilePath: filePath, Err: err}
	}
	fail := func(err error) (*Object, error) {
		return nil, &DownloadError{Bucket: bucket, Key: key, FilePath: local, Err: err}
	}

	if err := fs.EnsureParentDir(local); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(local), "."+filepath.Base(local)+".*.part")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	c.progress.Start(shortenName(ObjectPath(bucket, key), progressNameWidth), -1)
	aw := newAccountWriterAt(tmp, c.progress)

	start := time.Now()
	n, err := c.downloader.Download(ctx, aw, &s3v2.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	c.observe("download", start, aw.Bytes(), err)
	c.progress.Done(err)
	if err != nil {
		_ = tmp.Close()
		warnAPIError(err, "Download Object(%s) From Bucket(%s)", key, bucket)
		return fail(translate(err, ErrObjectNotFound))
	}

	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fail(err)
	}
	if err = tmp.Close(); err != nil {
		return fail(err)
	}
	if err = os.Rename(tmpName, local); err != nil {
		return fail(err)
	}

	log.Infof("Object downloaded: %s/%s", bucket, key)
	return &Object{
		Bucket: bucket,
		Key:    key,
		Size:   n,
	}, nil
}

// GetObject reads bucket/key fully into memory.
func (c *s3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	head, err := c.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	// a ranged GET on an empty object is answered with InvalidRange
	if head.Size == 0 {
		return []byte{}, nil
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, head.Size))

	input := &s3v2.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	start := time.Now()
	numBytes, err := c.downloader.Download(ctx, buf, input)
	c.observe("get_object", start, numBytes, err)
	if err != nil {
		warnAPIError(err, "Get Object(%s) From Bucket(%s)", key, bucket)
		return nil, &DownloadError{Bucket: bucket, Key: key, Err: translate(err, ErrObjectNotFound)}
	}

	return buf.Bytes()[:numBytes], nil
}

// HeadObject returns the metadata of bucket/key.
func (c *s3Client) HeadObject(ctx context.Context, bucket, key string) (*Object, error) {
	if bucket == "" || key == "" {
		return nil, &DownloadError{Bucket: bucket, Key: key, Err: errMissingName(bucket)}
	}

	input := &s3v2.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	start := time.Now()
	out, err := c.client.HeadObject(ctx, input)
	c.observe("head_object", start, 0, err)
	if err != nil {
		if !IsNotFound(err) {
			warnAPIError(err, "Head Object(%s) from Bucket(%s)", key, bucket)
		}
		return nil, &DownloadError{Bucket: bucket, Key: key, Err: translate(err, ErrObjectNotFound)}
	}

	return &Object{
		Bucket:       bucket,
		Key:          key,
		Size:         out.ContentLength,
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		StorageClass: string(out.StorageClass),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// DeleteObject removes bucket/key. S3 itself reports success for a missing
// key; ErrObjectNotFound is only returned when the service says so.
func (c *s3Client) DeleteObject(ctx context.Context, bucket, key string) error {
	if bucket == "" || key == "" {
		log.Warn("Bucket name / Object name is not specified")
		return &DeleteObjectError{Bucket: bucket, Key: key, Err: errMissingName(bucket)}
	}

	input := &s3v2.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	start := time.Now()
	_, err := c.client.DeleteObject(ctx, input)
	c.observe("delete_object", start, 0, err)
	if err != nil {
		warnAPIError(err, "Delete Object(%s) from Bucket(%s)", key, bucket)
		return &DeleteObjectError{Bucket: bucket, Key: key, Err: translate(err, ErrObjectNotFound)}
	}

	log.Infof("Object deleted: %s/%s", bucket, key)
	return nil
}

// ListObjects returns every object under prefix in key order, following
// continuation tokens across pages.
func (c *s3Client) ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error) {
	if bucket == "" {
		return nil, fmt.Errorf("list objects: %w", ErrInvalidBucketName)
	}

	input := &s3v2.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var list []Object
	paginator := s3v2.NewListObjectsV2Paginator(c.client, input)
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		c.observe("list_objects", start, 0, err)
		if err != nil {
			warnAPIError(err, "List Objects(%s) from Bucket(%s)", prefix, bucket)
			if IsNotFound(err) {
				return nil, &BucketDoesNotExistError{Bucket: bucket, Err: err}
			}
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", bucket, translate(err, ErrBucketNotFound))
		}

		for _, item := range page.Contents {
			list = append(list, Object{
				Bucket:       bucket,
				Key:          aws.ToString(item.Key),
				Size:         item.Size,
				ETag:         aws.ToString(item.ETag),
				StorageClass: string(item.StorageClass),
				LastModified: aws.ToTime(item.LastModified),
			})
		}
	}

	return list, nil
}

func errMissingName(bucket string) error {
	if bucket == "" {
		return ErrInvalidBucketName
	}
	return ErrInvalidObjectKey
}
