// Package dataset prepares the image folders the classifier is trained and evaluated on.
//
// Raw images are filtered by class metadata into an interim tree with one folder per
// class, then copied into processed/<subset>/<class>/<class>_<j>.jpg for classes with
// enough samples.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

// ErrMissingColumn is returned when a CSV lacks a required header.
var ErrMissingColumn = errors.New("missing column")

// SpeciesDir folds a scientific name into its folder name: "Boletus edulis" -> "boletus_edulis".
func SpeciesDir(species string) string {
	lower := cases.Lower(language.Und).String(strings.TrimSpace(species))
	return strings.Join(strings.Fields(lower), "_")
}

// ReadClasses reads the species column of the class CSV.
func ReadClasses(r io.Reader) ([]string, error) {
	rows, idx, err := readCSV(r, "species")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row[idx["species"]])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

// ClassDirs maps species names to folder names, keeping order.
func ClassDirs(species []string) []string {
	out := make([]string, len(species))
	for i, s := range species {
		out[i] = SpeciesDir(s)
	}
	return out
}

// readCSV parses a headered CSV and returns data rows plus the column index of every
// required header. A UTF-8 byte order mark is stripped.
func readCSV(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty csv: %w", ErrMissingColumn)
		}
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) < len(header) {
			padded := make([]string, len(header))
			copy(padded, rec)
			rec = padded
		}
		rows = append(rows, rec)
	}
	return rows, idx, nil
}
