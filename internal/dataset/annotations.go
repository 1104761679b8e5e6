package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Annotations is a COCO-style annotation file.
type Annotations struct {
	Annotations []Annotation `json:"annotations"`
	Images      []Image      `json:"images"`
	Categories  []Category   `json:"categories"`
}

// Annotation links an image to a category.
type Annotation struct {
	ID         int64 `json:"id"`
	ImageID    int64 `json:"image_id"`
	CategoryID int64 `json:"category_id"`
}

// Image is an annotated image.
type Image struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
}

// Category is a species in the annotation file.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CategoryCount is the number of annotated images of one species.
type CategoryCount struct {
	Name  string
	Count int
}

// ReadAnnotations decodes an annotation file.
func ReadAnnotations(r io.Reader) (Annotations, error) {
	var a Annotations
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return Annotations{}, fmt.Errorf("decode annotations: %w", err)
	}
	return a, nil
}

// ClassCounts counts annotations per category name, most frequent first.
// Annotations pointing at unknown images or categories are ignored.
func (a Annotations) ClassCounts() []CategoryCount {
	images := make(map[int64]struct{}, len(a.Images))
	for _, img := range a.Images {
		images[img.ID] = struct{}{}
	}
	names := make(map[int64]string, len(a.Categories))
	for _, c := range a.Categories {
		names[c.ID] = c.Name
	}

	counts := make(map[string]int)
	for _, ann := range a.Annotations {
		if _, ok := images[ann.ImageID]; !ok {
			continue
		}
		name, ok := names[ann.CategoryID]
		if !ok {
			continue
		}
		counts[name]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MatchClasses returns the count for each class in order, 0 when absent from counts.
func MatchClasses(counts []CategoryCount, classes []string) []CategoryCount {
	byName := make(map[string]int, len(counts))
	for _, c := range counts {
		byName[c.Name] = c.Count
	}
	out := make([]CategoryCount, len(classes))
	for i, class := range classes {
		out[i] = CategoryCount{Name: class, Count: byName[class]}
	}
	return out
}

// SearchCounts returns the entries whose name contains query, case-insensitively.
func SearchCounts(counts []CategoryCount, query string) []CategoryCount {
	q := strings.ToLower(query)
	var out []CategoryCount
	for _, c := range counts {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}
