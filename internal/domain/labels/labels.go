// Package labels holds the ordered class names a classifier predicts.
package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// List maps model output indices to class names. It is immutable once parsed.
type List struct {
	names []string
}

// New builds a list from names, rejecting empty and duplicate entries.
func New(names []string) (List, error) {
	if len(names) == 0 {
		return List{}, fmt.Errorf("label list is empty")
	}
	seen := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return List{}, fmt.Errorf("label %d is empty", i)
		}
		if prev, ok := seen[n]; ok {
			return List{}, fmt.Errorf("duplicate label %q at %d and %d", n, prev, i)
		}
		seen[n] = i
	}
	cp := make([]string, len(names))
	copy(cp, names)
	return List{names: cp}, nil
}

// Parse reads a label artifact: the first line is a header and is dropped,
// every following line is one label in output-index order.
func Parse(r io.Reader) (List, error) {
	sc := bufio.NewScanner(r)
	var names []string
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		names = append(names, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return List{}, fmt.Errorf("read labels: %w", err)
	}
	if header {
		return List{}, fmt.Errorf("label file has no header line")
	}
	return New(names)
}

// LoadFile parses the label artifact at path.
func LoadFile(path string) (List, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return List{}, fmt.Errorf("open labels %s: %w", path, err)
	}
	defer f.Close()

	l, err := Parse(f)
	if err != nil {
		return List{}, fmt.Errorf("labels %s: %w", path, err)
	}
	return l, nil
}

// Len returns the number of classes.
func (l List) Len() int { return len(l.names) }

// At returns the label of class i.
func (l List) At(i int) string { return l.names[i] }

// Index returns the position of name, or -1.
func (l List) Index(name string) int {
	for i, n := range l.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Names returns a copy of the labels in index order.
func (l List) Names() []string {
	cp := make([]string, len(l.names))
	copy(cp, l.names)
	return cp
}
