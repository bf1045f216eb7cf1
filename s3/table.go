package s3

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultSeparator      = ','
	DefaultNullIdentifier = "#N/A"

	utf8BOM = "\ufeff"
)

var ErrInvalidTable = errors.New("invalid table")

// Table is a header plus rows of cells. A nil cell, a NaN float, a zero
// time.Time or a nil pointer is written as the null identifier.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

type TableOption struct {
	Separator      rune
	NullIdentifier string
	// Compress gzips the encoded table and sets Content-Encoding.
	Compress bool
}

func (o *TableOption) withDefaults() TableOption {
	out := TableOption{}
	if o != nil {
		out = *o
	}
	if out.Separator == 0 {
		out.Separator = DefaultSeparator
	}
	if out.NullIdentifier == "" {
		out.NullIdentifier = DefaultNullIdentifier
	}
	return out
}

// Encode writes t as delimited text: a UTF-8 byte order mark, the header
// row, then one line per row. There is no index column.
func (t *Table) Encode(w io.Writer, opt *TableOption) error {
	o := opt.withDefaults()
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: no columns", ErrInvalidTable)
	}

	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = o.Separator
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidTable, i, len(row), len(t.Columns))
		}
		for j, cell := range row {
			record[j] = formatCell(cell, o.NullIdentifier)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v interface{}, null string) string {
	// Pointers are followed to their value; a nil pointer of any type is null.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return null
		}
		elem := rv.Elem().Interface()
		_, ptrStringer := v.(fmt.Stringer)
		_, elemStringer := elem.(fmt.Stringer)
		if !ptrStringer || elemStringer {
			return formatCell(elem, null)
		}
	}

	switch x := v.(type) {
	case nil:
		return null
	case string:
		return x
	case float64:
		return formatFloat(x, 64, null)
	case float32:
		return formatFloat(float64(x), 32, null)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return formatTime(x, null)
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bitSize int, null string) string {
	switch {
	case math.IsNaN(f):
		return null
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func formatTime(t time.Time, null string) string {
	switch {
	case t.IsZero():
		return null
	case t.Nanosecond() != 0:
		return t.Format("2006-01-02 15:04:05.000000")
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// ReadTable parses delimited text whose first record is the header. A
// leading byte order mark is dropped and empty cells become nil.
func ReadTable(r io.Reader, sep rune) (*Table, error) {
	if sep == 0 {
		sep = DefaultSeparator
	}
	cr := csv.NewReader(r)
	cr.Comma = sep

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header", ErrInvalidTable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	t := &Table{Columns: header}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
		row := make([]interface{}, len(record))
		for i, cell := range record {
			if cell != "" {
				row[i] = cell
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// UploadTable encodes table as delimited text and stores it at bucket/key,
// creating the bucket when it is missing.
func (c *s3Client) UploadTable(ctx context.Context, table *Table, bucket, key string, opt *TableOption) (*Object, error) {
	if table == nil || bucket == "" || key == "" {
		log.Warn("Table / Bucket name / Object name is not specified")
		err := ErrInvalidTable
		if table != nil {
			err = errMissingName(bucket)
		}
		return nil, &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	o := opt.withDefaults()

	var buf bytes.Buffer
	if err := table.Encode(&buf, &o); err != nil {
		return nil, &UploadError{Bucket: bucket, Key: key, Err: err}
	}
	data := buf.Bytes()

	req := &putRequest{
		bucket:      bucket,
		key:         key,
		contentType: "text/csv; charset=utf-8",
	}

	if o.Compress {
		var zbuf bytes.Buffer
		zw := gzip.NewWriter(&zbuf)
		if _, err := zw.Write(data); err != nil {
			return nil, &UploadError{Bucket: bucket, Key: key, Err: err}
		}
		if err := zw.Close(); err != nil {
			return nil, &UploadError{Bucket: bucket, Key: key, Err: err}
		}
		data = zbuf.Bytes()
		req.contentEncoding = "gzip"
	}

	req.body = bytes.NewReader(data)
	req.size = int64(len(data))
	return c.upload(ctx, req)
}
