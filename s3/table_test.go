package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type currency string

func (c currency) String() string { return strings.ToUpper(string(c)) }

func TestFormatCell(t *testing.T) {
	var nilString *string
	var nilFloat *float64
	var nilTime *time.Time
	var nilURL *url.URL
	seven := int64(7)
	yes := true
	half := float32(0.5)
	when := time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC)
	link := &url.URL{Scheme: "https", Host: "example.com", Path: "/a"}
	pp := &seven

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, "#N/A"},
		{"string", "abc", "abc"},
		{"nil string pointer", nilString, "#N/A"},
		{"int", 42, "42"},
		{"int64 pointer", &seven, "7"},
		{"whole float", 3.0, "3.0"},
		{"fraction", 2.5, "2.5"},
		{"float32", float32(0.5), "0.5"},
		{"exponent", 1e21, "1e+21"},
		{"nan", math.NaN(), "#N/A"},
		{"nil float pointer", nilFloat, "#N/A"},
		{"inf", math.Inf(1), "inf"},
		{"negative inf", math.Inf(-1), "-inf"},
		{"true", true, "True"},
		{"false", false, "False"},
		{"date", time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC), "2023-04-05"},
		{"datetime", time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC), "2023-04-05 06:07:08"},
		{"micros", time.Date(2023, 4, 5, 6, 7, 8, 123456000, time.UTC), "2023-04-05 06:07:08.123456"},
		{"zero time", time.Time{}, "#N/A"},
		{"nil time pointer", nilTime, "#N/A"},
		{"bytes", []byte("raw"), "raw"},
		{"stringer", currency("eur"), "EUR"},
		{"fallback", []int{1, 2}, "[1 2]"},
		{"nil int pointer", (*int)(nil), "#N/A"},
		{"nil bool pointer", (*bool)(nil), "#N/A"},
		{"nil float32 pointer", (*float32)(nil), "#N/A"},
		{"nil stringer pointer", nilURL, "#N/A"},
		{"bool pointer", &yes, "True"},
		{"float32 pointer", &half, "0.5"},
		{"time pointer", &when, "2023-04-05"},
		{"stringer pointer", link, "https://example.com/a"},
		{"pointer to pointer", &pp, "7"},
		{"nil pointer to pointer", (**int)(nil), "#N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCell(tt.in, DefaultNullIdentifier))
		})
	}
}

func TestTableEncode(t *testing.T) {
	table := &Table{
		Columns: []string{"id", "name", "score"},
		Rows: [][]interface{}{
			{1, "alice", 9.5},
			{2, "bob, jr.", nil},
			{3, `say "hi"`, math.NaN()},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf, nil))

	want := "\ufeffid,name,score\n" +
		"1,alice,9.5\n" +
		"2,\"bob, jr.\",#N/A\n" +
		"3,\"say \"\"hi\"\"\",#N/A\n"
	assert.Equal(t, want, buf.String())
}

func TestTableEncodeNilPointers(t *testing.T) {
	table := &Table{
		Columns: []string{"i", "b", "f", "u"},
		Rows:    [][]interface{}{{(*int)(nil), (*bool)(nil), (*float32)(nil), (*url.URL)(nil)}},
	}

	var buf bytes.Buffer
	require.NotPanics(t, func() {
		require.NoError(t, table.Encode(&buf, nil))
	})
	assert.Equal(t, "\ufeffi,b,f,u\n#N/A,#N/A,#N/A,#N/A\n", buf.String())
}

func TestTableEncodeOptions(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Rows:    [][]interface{}{{"x;y", nil}},
	}

	var buf bytes.Buffer
	require.NoError(t, table.Encode(&buf, &TableOption{Separator: ';', NullIdentifier: "NULL"}))
	assert.Equal(t, "\ufeffa;b\n\"x;y\";NULL\n", buf.String())
}

func TestTableEncodeInvalid(t *testing.T) {
	err := (&Table{}).Encode(io.Discard, nil)
	assert.True(t, errors.Is(err, ErrInvalidTable))

	ragged := &Table{Columns: []string{"a", "b"}, Rows: [][]interface{}{{1}}}
	err = ragged.Encode(io.Discard, nil)
	assert.True(t, errors.Is(err, ErrInvalidTable))
	assert.Contains(t, err.Error(), "row 0 has 1 cells, want 2")
}

func TestReadTable(t *testing.T) {
	in := "\ufeffcity;population;note\nBerlin;3645000;\nParis;;capital\n"

	table, err := ReadTable(strings.NewReader(in), ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "population", "note"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []interface{}{"Berlin", "3645000", nil}, table.Rows[0])
	assert.Equal(t, []interface{}{"Paris", nil, "capital"}, table.Rows[1])

	_, err = ReadTable(strings.NewReader(""), 0)
	assert.True(t, errors.Is(err, ErrInvalidTable))

	_, err = ReadTable(strings.NewReader("a,b\n1\n"), ',')
	assert.True(t, errors.Is(err, ErrInvalidTable))
}

func TestUploadTable(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	table := &Table{
		Columns: []string{"day", "value"},
		Rows: [][]interface{}{
			{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 1.0},
			{time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), nil},
		},
	}

	obj, err := c.UploadTable(ctx, table, "tables-bucket", "daily.csv", &TableOption{Separator: '|'})
	require.NoError(t, err)
	assert.Equal(t, "s3://tables-bucket/daily.csv", obj.Path())

	data, contentType, contentEncoding, ok := srv.Object("tables-bucket", "daily.csv")
	require.True(t, ok)
	assert.Equal(t, "\ufeffday|value\n2024-01-02|1.0\n2024-01-03|#N/A\n", string(data))
	assert.Equal(t, "text/csv; charset=utf-8", contentType)
	assert.Empty(t, contentEncoding)
}

func TestUploadTableCompressed(t *testing.T) {
	c, srv := newTestClient(t)

	table := &Table{Columns: []string{"k"}, Rows: [][]interface{}{{"v"}}}
	_, err := c.UploadTable(context.Background(), table, testBucket, "t.csv.gz", &TableOption{Compress: true})
	require.NoError(t, err)

	data, _, contentEncoding, ok := srv.Object(testBucket, "t.csv.gz")
	require.True(t, ok)
	assert.Equal(t, "gzip", contentEncoding)

	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "\ufeffk\nv\n", string(plain))
}

func TestUploadTableInvalid(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	_, err := c.UploadTable(ctx, nil, testBucket, "k", nil)
	assert.True(t, errors.Is(err, ErrInvalidTable))

	_, err = c.UploadTable(ctx, &Table{Columns: []string{"a"}}, "", "k", nil)
	assert.True(t, errors.Is(err, ErrInvalidBucketName))

	_, err = c.UploadTable(ctx, &Table{}, testBucket, "k", nil)
	var ue *UploadError
	require.True(t, errors.As(err, &ue))
	assert.True(t, errors.Is(err, ErrInvalidTable))

	assert.Empty(t, srv.Requests())
}
