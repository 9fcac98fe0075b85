package fetcher

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// ReadCSV reads listing rows from a CSV stream. The first row is the header
// when hasHeader is set. Rows with a differing field count are tolerated;
// portals publish ragged exports more often than not.
func ReadCSV(r io.Reader, hasHeader bool) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	for i := 0; ; i++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "csv: read row %d", i)
		}
		if i == 0 && hasHeader {
			header = record
			continue
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}
