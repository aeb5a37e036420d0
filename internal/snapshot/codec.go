package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteRows writes rows in the stored format: comma separated, no header,
// one row per line.
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	for i := range rows {
		if err := cw.Write(rows[i].Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRows parses rows written by WriteRows. Blank lines are skipped; a line
// without exactly ten columns or with a non-numeric sequence number or port
// is a *CorruptRowError.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		row, err := parseRecord(record)
		if err != nil {
			return nil, &CorruptRowError{Line: line, Reason: err.Error()}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// CorruptRowError reports an unparsable stored row.
type CorruptRowError struct {
	Line   int
	Reason string
}

func (e *CorruptRowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func parseRecord(record []string) (Row, error) {
	if len(record) != columnCount {
		return Row{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(record))
	}

	seq, err := strconv.Atoi(record[0])
	if err != nil {
		return Row{}, fmt.Errorf("invalid sequence number %q", record[0])
	}
	port, err := strconv.Atoi(record[2])
	if err != nil {
		return Row{}, fmt.Errorf("invalid port %q", record[2])
	}

	return Row{
		Seq:       seq,
		IP:        record[1],
		Port:      port,
		OS:        record[3],
		Hostnames: record[4],
		Domains:   record[5],
		Product:   record[6],
		Version:   record[7],
		Vulns:     record[8],
		Timestamp: record[9],
	}, nil
}
