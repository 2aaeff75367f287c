package parsers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var delimiters = []rune{'\t', ',', ';', '|'}

type column struct {
	field string
	ms    bool
}

// parseDelimited reads a header row followed by one track per row. The delimiter is
// whichever candidate occurs most often in the header line.
func parseDelimited(p *parser, data []byte) error {
	data, err := decodeText(data)
	if err != nil {
		return err
	}

	header, _, _ := bytes.Cut(data, []byte("\n"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(string(header))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rawHeaders, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("missing header row")
	}
	if err != nil {
		return fmt.Errorf("header row: %w", err)
	}

	columns := make(map[int]column)
	mapped := make(map[string]bool)
	for i, h := range rawHeaders {
		if field, ms, ok := fieldFor(h); ok && !mapped[field] {
			mapped[field] = true
			columns[i] = column{field: field, ms: ms}
		}
	}
	if len(columns) == 0 {
		return errors.New("header has no recognizable columns")
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				p.warn(perr.Line, "row", perr.Err.Error())
				continue
			}
			return err
		}
		if blank(row) {
			continue
		}
		line, _ := reader.FieldPos(0)

		r := p.record(line)
		for i, v := range row {
			if c, ok := columns[i]; ok {
				setValue(r, c.field, c.ms, v)
			}
		}
		p.emit(r)
	}
	return nil
}

func sniffDelimiter(header string) rune {
	best, count := ',', 0
	for _, d := range delimiters {
		if n := strings.Count(header, string(d)); n > count {
			best, count = d, n
		}
	}
	return best
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
