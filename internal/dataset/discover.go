package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kailas-cloud/mushi/internal/domain/labels"
)

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// LabeledImage is an image whose class is known from its folder.
type LabeledImage struct {
	Path  string
	Label string
}

// ListLabeledImages finds <root>/<label>/**/*.{jpg,jpeg,png} for every label,
// matching extensions in any case. Labels without a folder contribute nothing.
// Results are sorted by path.
func ListLabeledImages(root string, l labels.List) ([]LabeledImage, error) {
	var out []LabeledImage
	for _, label := range l.Names() {
		dir := filepath.Join(root, label)
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), "**/*", doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		for _, m := range matches {
			if !isImageFile(m) {
				continue
			}
			out = append(out, LabeledImage{Path: filepath.Join(dir, filepath.FromSlash(m)), Label: label})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func isImageFile(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}
