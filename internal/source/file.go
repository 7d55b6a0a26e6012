package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// XLSX reads one worksheet of a local workbook. The file is reopened on
// every fetch so edits made by hand are picked up.
type XLSX struct {
	Path string
	// Sheet is the worksheet name; empty means the first sheet.
	Sheet string
}

// Describe implements Source.
func (x *XLSX) Describe() string {
	return "xlsx:" + x.Path
}

// Fetch implements Source.
func (x *XLSX) Fetch(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Class: ClassTransport, Source: x.Describe(), Err: err}
	}
	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		return nil, &FetchError{Class: fileClass(err), Source: x.Describe(), Err: err}
	}
	defer func() { _ = f.Close() }()

	sheet := x.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, nil
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &FetchError{Class: ClassNotFound, Source: x.Describe(), Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	return rows, nil
}

// CSV reads a local comma-separated file.
type CSV struct {
	Path  string
	Comma rune // defaults to ','
}

// Describe implements Source.
func (c *CSV) Describe() string {
	return "csv:" + c.Path
}

// Fetch implements Source.
func (c *CSV) Fetch(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Class: ClassTransport, Source: c.Describe(), Err: err}
	}
	payload, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, &FetchError{Class: fileClass(err), Source: c.Describe(), Err: err}
	}

	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	if c.Comma != 0 {
		r.Comma = c.Comma
	}
	rows, err := r.ReadAll()
	if err != nil {
		// A half-saved file parses on the next attempt.
		return nil, &FetchError{Class: ClassTransport, Source: c.Describe(), Err: err}
	}
	return rows, nil
}

func fileClass(err error) Class {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ClassNotFound
	case errors.Is(err, fs.ErrPermission):
		return ClassAuth
	default:
		return ClassTransport
	}
}
