package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func TestDecodeRecords(t *testing.T) {
	in := "text,hand_annotated\nI love legal cannabis,pro\nban it,anti\n"

	records, err := DecodeRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "I love legal cannabis", records[0].Text)
	assert.Equal(t, "pro", records[0].GroundTruth)
	assert.Equal(t, "anti", records[1].GroundTruth)
}

func TestDecodeRecordsWithoutAnnotations(t *testing.T) {
	in := "text\nsome document\nanother document\n"

	records, err := DecodeRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Empty(t, records[0].GroundTruth)
}

func TestDecodeRecordsIgnoresExtraColumns(t *testing.T) {
	in := "id,text,source\n1,hello,web\n"

	records, err := DecodeRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Text)
}

func TestDecodeRecordsUTF8BOM(t *testing.T) {
	in := "\uFEFFtext\nhello\n"

	records, err := DecodeRecords(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "hello", records[0].Text)
}

func TestDecodeRecordsUTF16(t *testing.T) {
	// Simulate a spreadsheet export: UTF-16 little-endian with BOM.
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, _, err := transform.String(enc, "text,hand_annotated\nhello,pro\n")
	require.NoError(t, err)

	records, decErr := DecodeRecords(strings.NewReader(encoded))
	require.NoError(t, decErr)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Text)
	assert.Equal(t, "pro", records[0].GroundTruth)
}

func TestDecodeRecordsMissingTextColumn(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader("body,label\nhello,pro\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "text"`)
}

func TestDecodeRecordsEmptyInput(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader(""))
	assert.Error(t, err)

	_, err = DecodeRecords(strings.NewReader("text\n"))
	assert.Error(t, err)
}

type stubFetcher struct {
	body string
	err  error
}

func (s *stubFetcher) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestLoadRecordsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("text\nhello\n"), 0o644))

	records, err := LoadRecords(context.Background(), path, &stubFetcher{}, &stubFetcher{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoadRecordsMissingFile(t *testing.T) {
	_, err := LoadRecords(context.Background(), filepath.Join(t.TempDir(), "absent.csv"), &stubFetcher{}, &stubFetcher{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not readable")
}

func TestLoadRecordsHTTPURL(t *testing.T) {
	httpStub := &stubFetcher{body: "text\nfrom http\n"}
	ftpStub := &stubFetcher{err: io.ErrUnexpectedEOF}

	records, err := LoadRecords(context.Background(), "https://example.com/data.csv", httpStub, ftpStub)
	require.NoError(t, err)
	assert.Equal(t, "from http", records[0].Text)
}

func TestLoadRecordsFTPURL(t *testing.T) {
	httpStub := &stubFetcher{err: io.ErrUnexpectedEOF}
	ftpStub := &stubFetcher{body: "text\nfrom ftp\n"}

	records, err := LoadRecords(context.Background(), "ftp://example.com/data.csv", httpStub, ftpStub)
	require.NoError(t, err)
	assert.Equal(t, "from ftp", records[0].Text)
}
