package s3

import (
	"fmt"
	"time"
)

type Bucket struct {
	Name         string
	CreationDate time.Time
}

type Object struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	StorageClass string
	LastModified time.Time
}

// Path returns the s3:// URI of the object.
func (o *Object) Path() string {
	return ObjectPath(o.Bucket, o.Key)
}

// ObjectPath formats bucket and key as an s3:// URI.
func ObjectPath(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}
