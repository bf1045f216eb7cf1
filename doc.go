// Copyright 2022 the go-s3fs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is a repository containing a thin connector for AWS S3 and S3
// compatible object stores, plus the s3connector command line built on it.
//
// Go to https://godoc.org/github.com/ThierryZhou/go-s3connector/s3 for the
// in-depth documentation for this library.
package lib
