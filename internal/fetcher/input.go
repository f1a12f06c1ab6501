package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"net/url"
	"os"
	"slices"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/labelkit/zeroshot/internal/model"
)

// LoadRecords reads the input dataset from source, which may be a local
// path or an http(s):// or ftp:// URL, wholesale into memory. The data must
// be CSV with a "text" column; a "hand_annotated" column is optional and
// carries per-row ground truth.
func LoadRecords(ctx context.Context, source string, httpFetcher Fetcher, ftpFetcher Fetcher) ([]model.InputRecord, error) {
	body, err := openSource(ctx, source, httpFetcher, ftpFetcher)
	if err != nil {
		return nil, eris.Wrapf(err, "input: %s not readable", source)
	}
	defer body.Close() //nolint:errcheck

	records, err := DecodeRecords(body)
	if err != nil {
		return nil, eris.Wrapf(err, "input: decode %s", source)
	}

	zap.L().Info("input: loaded records",
		zap.String("source", source),
		zap.Int("count", len(records)),
	)
	return records, nil
}

func openSource(ctx context.Context, source string, httpFetcher Fetcher, ftpFetcher Fetcher) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return httpFetcher.Download(ctx, source)
		case "ftp":
			return ftpFetcher.Download(ctx, source)
		}
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	return f, nil
}

// DecodeRecords decodes CSV data into input records. The reader may carry a
// UTF-8 BOM or be UTF-16 encoded (spreadsheet exports); both are handled
// transparently.
func DecodeRecords(r io.Reader) ([]model.InputRecord, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	csvReader := csv.NewReader(decoded)
	csvReader.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		if err == io.EOF {
			return nil, eris.New("empty input")
		}
		return nil, eris.Wrap(err, "read header")
	}

	if !slices.Contains(dec.Header(), "text") {
		return nil, eris.Errorf("missing required column \"text\" (found %v)", dec.Header())
	}

	var records []model.InputRecord
	for {
		var rec model.InputRecord
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "decode row %d", len(records)+1)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, eris.New("no data rows")
	}
	return records, nil
}
