// Copyright 2022 the go-s3fs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package s3

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
)

const (
	DefaultRegion         = "eu-central-1"
	defaultMaxAttempts    = 3
	defaultMaxBackoff     = 20 * time.Second
	defaultPresignExpiry  = 15 * time.Minute
	defaultPresignEntries = 4096
)

// Option carries everything NewClient needs to reach the object store.
// Empty credentials fall back to the default AWS credential chain.
type Option struct {
	URL         string        `json:"url" yaml:"url"`
	Region      string        `json:"region" yaml:"region"`
	AccessKey   string        `json:"accesskey" yaml:"accesskey"`
	SecretKey   string        `json:"secretkey" yaml:"secretkey"`
	Token       string        `json:"token" yaml:"token"`
	PathStyle   bool          `json:"path-style" yaml:"path-style"`
	MaxAttempts int           `json:"max-attempts" yaml:"max-attempts"`
	MaxBackoff  time.Duration `json:"max-backoff" yaml:"max-backoff"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`

	// PartSize and Concurrency tune the multipart uploader and downloader.
	PartSize    int64 `json:"part-size" yaml:"part-size"`
	Concurrency int   `json:"concurrency" yaml:"concurrency"`

	PresignExpiry time.Duration `json:"presign-expiry" yaml:"presign-expiry"`

	Observer Observer  `json:"-" yaml:"-"`
	Progress Accounter `json:"-" yaml:"-"`
}

var (
	defaultOption = Option{
		Region:        DefaultRegion,
		PathStyle:     true,
		MaxAttempts:   defaultMaxAttempts,
		MaxBackoff:    defaultMaxBackoff,
		PartSize:      manager.DefaultUploadPartSize,
		Concurrency:   manager.DefaultUploadConcurrency,
		PresignExpiry: defaultPresignExpiry,
	}
)

// DefaultOption returns a copy of the built-in defaults.
func DefaultOption() Option {
	return defaultOption
}

type OptionFunc func(*Option)

func WithS3Address(endpoint string, pathStyle bool) OptionFunc {
	return func(o *Option) {
		o.URL = endpoint
		o.PathStyle = pathStyle
	}
}

func WithS3User(accessKey, secretKey, token string) OptionFunc {
	return func(o *Option) {
		o.AccessKey = accessKey
		o.SecretKey = secretKey
		o.Token = token
	}
}

func WithRegion(region string) OptionFunc {
	return func(o *Option) {
		o.Region = region
	}
}

func WithRetry(maxAttempts int, maxBackoff time.Duration) OptionFunc {
	return func(o *Option) {
		o.MaxAttempts = maxAttempts
		o.MaxBackoff = maxBackoff
	}
}

func WithObserver(obs Observer) OptionFunc {
	return func(o *Option) {
		o.Observer = obs
	}
}

func WithProgress(acc Accounter) OptionFunc {
	return func(o *Option) {
		o.Progress = acc
	}
}

// fill replaces zero values with defaults.
func (o *Option) fill() {
	if o.Region == "" {
		o.Region = defaultOption.Region
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultOption.MaxAttempts
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultOption.MaxBackoff
	}
	if o.PartSize < manager.MinUploadPartSize {
		o.PartSize = defaultOption.PartSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultOption.Concurrency
	}
	if o.PresignExpiry <= 0 {
		o.PresignExpiry = defaultOption.PresignExpiry
	}
}

// ParseOption parses the comma separated form
// "url=http://host:9000,region=eu-central-1,accesskey=AK,secretkey=SK".
// Unset keys keep their defaults.
func ParseOption(args string) (*Option, error) {
	o := defaultOption

	if strings.TrimSpace(args) == "" {
		return &o, nil
	}

	entries := strings.Split(args, ",")
	for _, e := range entries {
		parts := strings.SplitN(strings.TrimSpace(e), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed option %q", e)
		}
		key, value := strings.ToLower(parts[0]), parts[1]

		var err error
		switch key {
		case "url":
			o.URL = value
		case "region":
			o.Region = value
		case "accesskey":
			o.AccessKey = value
		case "secretkey":
			o.SecretKey = value
		case "token":
			o.Token = value
		case "path-style":
			o.PathStyle, err = strconv.ParseBool(value)
		case "max-attempts":
			o.MaxAttempts, err = strconv.Atoi(value)
		case "timeout":
			o.Timeout, err = time.ParseDuration(value)
		case "presign-expiry":
			o.PresignExpiry, err = time.ParseDuration(value)
		default:
			return nil, fmt.Errorf("unknown option %q", parts[0])
		}
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", key, err)
		}
	}

	return &o, nil
}
