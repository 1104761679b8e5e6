package dataset

import (
	"io"
	"strings"
)

// Record is one raw image assigned to a class folder.
type Record struct {
	Filename string
	Class    string
}

// FilterMetadata selects the raw images whose species (genus + " " + specificEpithet)
// is one of classes. Class is returned in folder form.
func FilterMetadata(r io.Reader, classes []string) ([]Record, error) {
	rows, idx, err := readCSV(r, "genus", "specificEpithet", "image_path")
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		wanted[strings.TrimSpace(c)] = struct{}{}
	}

	var out []Record
	for _, row := range rows {
		genus := strings.TrimSpace(row[idx["genus"]])
		epithet := strings.TrimSpace(row[idx["specificEpithet"]])
		filename := strings.TrimSpace(row[idx["image_path"]])
		if genus == "" || epithet == "" || filename == "" {
			continue
		}
		species := genus + " " + epithet
		if _, ok := wanted[species]; !ok {
			continue
		}
		out = append(out, Record{Filename: filename, Class: SpeciesDir(species)})
	}
	return out, nil
}
