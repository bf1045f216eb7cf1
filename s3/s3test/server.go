// Package s3test provides an in-memory S3 endpoint speaking the REST/XML
// protocol, for tests that drive the real SDK.
package s3test

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	timeFormat   = "2006-01-02T15:04:05.000Z"
	defaultLimit = 1000
)

type object struct {
	data            []byte
	contentType     string
	contentEncoding string
	etag            string
	modified        time.Time
}

type bucket struct {
	created  time.Time
	location string
	objects  map[string]*object
}

type fault struct {
	status int
	code   string
}

// Server is an in-memory path-style S3 endpoint.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	buckets  map[string]*bucket
	faults   map[string]fault
	denyKeys map[string]bool
	requests []string
}

// NewServer starts a Server; callers must Close it.
func NewServer() *Server {
	s := &Server{
		buckets:  map[string]*bucket{},
		faults:   map[string]fault{},
		denyKeys: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Fail makes every request matching method and path ("/bucket" or
// "/bucket/key") answer with status and the S3 error code.
func (s *Server) Fail(method, path string, status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: status, code: code}
}

// DenyDelete makes DeleteObjects report AccessDenied for key.
func (s *Server) DenyDelete(bucket, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyKeys[bucket+"/"+key] = true
}

// AddBucket creates bucket directly.
func (s *Server) AddBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = &bucket{created: time.Now().UTC(), objects: map[string]*object{}}
	}
}

// AddObject stores data at bucket/key, creating the bucket when needed.
func (s *Server) AddObject(bucketName, key string, data []byte) {
	s.AddBucket(bucketName)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucketName].objects[key] = newObject(data, "", "")
}

// HasBucket reports whether bucket exists.
func (s *Server) HasBucket(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[name]
	return ok
}

// BucketLocation returns the location constraint the bucket was created with.
func (s *Server) BucketLocation(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[name]; ok {
		return b.location
	}
	return ""
}

// Object returns the stored bytes and content headers of bucket/key.
func (s *Server) Object(bucketName, key string) (data []byte, contentType, contentEncoding string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, found := s.buckets[bucketName]
	if !found {
		return nil, "", "", false
	}
	o, found := b.objects[key]
	if !found {
		return nil, "", "", false
	}
	return append([]byte(nil), o.data...), o.contentType, o.contentEncoding, true
}

// Keys returns the sorted keys of bucket.
func (s *Server) Keys(bucketName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		return nil
	}
	return sortedKeys(b.objects, "")
}

// Requests returns "METHOD /path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many requests matched "METHOD /path".
func (s *Server) Count(request string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == request {
			n++
		}
	}
	return n
}

func newObject(data []byte, contentType, contentEncoding string) *object {
	sum := md5.Sum(data)
	return &object{
		data:            data,
		contentType:     contentType,
		contentEncoding: contentEncoding,
		etag:            `"` + hex.EncodeToString(sum[:]) + `"`,
		modified:        time.Now().UTC().Truncate(time.Second),
	}
}

func sortedKeys(objects map[string]*object, prefix string) []string {
	keys := make([]string, 0, len(objects))
	for k := range objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	bucketName, key := splitPath(r.URL.Path)
	path := "/" + bucketName
	if key != "" {
		path += "/" + key
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method+" "+path)

	if f, ok := s.faults[r.Method+" "+path]; ok {
		writeError(w, r, f.status, f.code, "injected failure")
		return
	}

	switch {
	case bucketName == "":
		if r.Method != http.MethodGet {
			writeError(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
			return
		}
		s.listBuckets(w)
	case key == "":
		s.handleBucket(w, r, bucketName)
	default:
		s.handleObject(w, r, bucketName, key)
	}
}

func splitPath(path string) (string, string) {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func (s *Server) handleBucket(w http.ResponseWriter, r *http.Request, name string) {
	b, exists := s.buckets[name]

	switch r.Method {
	case http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case http.MethodPut:
		if exists {
			writeError(w, r, http.StatusConflict, "BucketAlreadyOwnedByYou",
				"Your previous request to create the named bucket succeeded and you already own it.")
			return
		}
		var conf struct {
			LocationConstraint string `xml:"LocationConstraint"`
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			if err := xml.Unmarshal(body, &conf); err != nil {
				writeError(w, r, http.StatusBadRequest, "MalformedXML", err.Error())
				return
			}
		}
		s.buckets[name] = &bucket{
			created:  time.Now().UTC(),
			location: conf.LocationConstraint,
			objects:  map[string]*object{},
		}
		w.Header().Set("Location", "/"+name)
		w.WriteHeader(http.StatusOK)

	case http.MethodDelete:
		if !exists {
			writeError(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
			return
		}
		if len(b.objects) > 0 {
			writeError(w, r, http.StatusConflict, "BucketNotEmpty", "The bucket you tried to delete is not empty")
			return
		}
		delete(s.buckets, name)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		if !exists {
			writeError(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
			return
		}
		s.listObjects(w, r, name, b)

	case http.MethodPost:
		if _, ok := r.URL.Query()["delete"]; !ok {
			writeError(w, r, http.StatusNotImplemented, "NotImplemented", "unsupported bucket POST")
			return
		}
		if !exists {
			writeError(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
			return
		}
		s.deleteObjects(w, r, name, b)

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	}
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request, bucketName, key string) {
	b, exists := s.buckets[bucketName]
	if !exists {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeError(w, r, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}
		o := newObject(data, r.Header.Get("Content-Type"), r.Header.Get("Content-Encoding"))
		b.objects[key] = o
		w.Header().Set("ETag", o.etag)
		w.WriteHeader(http.StatusOK)

	case http.MethodHead:
		o, ok := b.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeObjectHeaders(w, o)
		w.Header().Set("Content-Length", strconv.Itoa(len(o.data)))
		w.WriteHeader(http.StatusOK)

	case http.MethodGet:
		o, ok := b.objects[key]
		if !ok {
			writeError(w, r, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
			return
		}
		serveObject(w, r, o)

	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	}
}

func writeObjectHeaders(w http.ResponseWriter, o *object) {
	w.Header().Set("ETag", o.etag)
	w.Header().Set("Last-Modified", o.modified.Format(http.TimeFormat))
	if o.contentType != "" {
		w.Header().Set("Content-Type", o.contentType)
	}
	if o.contentEncoding != "" {
		w.Header().Set("Content-Encoding", o.contentEncoding)
	}
}

func serveObject(w http.ResponseWriter, r *http.Request, o *object) {
	writeObjectHeaders(w, o)
	total := int64(len(o.data))

	rng := r.Header.Get("Range")
	if rng == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(o.data)
		return
	}

	var start, end int64
	if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", "bad range "+rng)
		return
	}
	if start >= total {
		writeError(w, r, http.StatusRequestedRangeNotSatisfiable, "InvalidRange", "The requested range is not satisfiable")
		return
	}
	if end >= total {
		end = total - 1
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(o.data[start : end+1])
}

type listAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Owner   struct {
		ID          string `xml:"ID"`
		DisplayName string `xml:"DisplayName"`
	} `xml:"Owner"`
	Buckets []xmlBucket `xml:"Buckets>Bucket"`
}

type xmlBucket struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

func (s *Server) listBuckets(w http.ResponseWriter) {
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	res := listAllMyBucketsResult{}
	res.Owner.ID = "s3test"
	res.Owner.DisplayName = "s3test"
	for _, name := range names {
		res.Buckets = append(res.Buckets, xmlBucket{
			Name:         name,
			CreationDate: s.buckets[name].created.Format(timeFormat),
		})
	}
	writeXML(w, http.StatusOK, res)
}

type listBucketResult struct {
	XMLName               xml.Name     `xml:"ListBucketResult"`
	Name                  string       `xml:"Name"`
	Prefix                string       `xml:"Prefix"`
	KeyCount              int          `xml:"KeyCount"`
	MaxKeys               int          `xml:"MaxKeys"`
	IsTruncated           bool         `xml:"IsTruncated"`
	ContinuationToken     string       `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string       `xml:"NextContinuationToken,omitempty"`
	Contents              []xmlContent `xml:"Contents"`
}

type xmlContent struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int    `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

// listObjects serves ListObjectsV2; the continuation token is the last key
// of the previous page.
func (s *Server) listObjects(w http.ResponseWriter, r *http.Request, name string, b *bucket) {
	q := r.URL.Query()
	prefix := q.Get("prefix")
	token := q.Get("continuation-token")
	limit := defaultLimit
	if v, err := strconv.Atoi(q.Get("max-keys")); err == nil && v > 0 && v < defaultLimit {
		limit = v
	}

	keys := sortedKeys(b.objects, prefix)
	if token != "" {
		i := sort.SearchStrings(keys, token)
		for i < len(keys) && keys[i] <= token {
			i++
		}
		keys = keys[i:]
	}

	res := listBucketResult{
		Name:              name,
		Prefix:            prefix,
		MaxKeys:           limit,
		ContinuationToken: token,
	}
	if len(keys) > limit {
		keys = keys[:limit]
		res.IsTruncated = true
		res.NextContinuationToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		o := b.objects[k]
		res.Contents = append(res.Contents, xmlContent{
			Key:          k,
			LastModified: o.modified.Format(timeFormat),
			ETag:         o.etag,
			Size:         len(o.data),
			StorageClass: "STANDARD",
		})
	}
	res.KeyCount = len(res.Contents)
	writeXML(w, http.StatusOK, res)
}

type deleteRequest struct {
	Quiet   bool `xml:"Quiet"`
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

type deleteResult struct {
	XMLName xml.Name         `xml:"DeleteResult"`
	Deleted []xmlDeleted     `xml:"Deleted"`
	Errors  []xmlDeleteError `xml:"Error"`
}

type xmlDeleted struct {
	Key string `xml:"Key"`
}

type xmlDeleteError struct {
	Key     string `xml:"Key"`
	Code    string `xml:"Code"`
	Message string `xml:"Message"`
}

func (s *Server) deleteObjects(w http.ResponseWriter, r *http.Request, name string, b *bucket) {
	var req deleteRequest
	body, _ := io.ReadAll(r.Body)
	if err := xml.Unmarshal(body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "MalformedXML", err.Error())
		return
	}

	res := deleteResult{}
	for _, o := range req.Objects {
		if s.denyKeys[name+"/"+o.Key] {
			res.Errors = append(res.Errors, xmlDeleteError{Key: o.Key, Code: "AccessDenied", Message: "Access Denied"})
			continue
		}
		delete(b.objects, o.Key)
		if !req.Quiet {
			res.Deleted = append(res.Deleted, xmlDeleted{Key: o.Key})
		}
	}
	writeXML(w, http.StatusOK, res)
}

type xmlError struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if r.Method == http.MethodHead {
		w.WriteHeader(status)
		return
	}
	writeXML(w, status, xmlError{
		Code:      code,
		Message:   message,
		Resource:  r.URL.Path,
		RequestID: "s3test",
	})
}

func writeXML(w http.ResponseWriter, status int, v interface{}) {
	data, err := xml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, xml.Header)
	_, _ = w.Write(data)
}
