package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Metadata describes the exported model's tensors.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	ImageSize   int     `json:"image_size"`
	Layout      string  `json:"layout"` // nhwc | nchw
	Scale       string  `json:"scale"`  // raw | unit
}

// LoadMetadata reads and validates a metadata JSON file.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Validate checks the shapes are usable for single-image classification.
func (m Metadata) Validate() error {
	if len(m.InputShape) == 0 || len(m.OutputShape) == 0 {
		return fmt.Errorf("metadata: input_shape and output_shape are required")
	}
	for _, d := range append(append([]int64{}, m.InputShape...), m.OutputShape...) {
		if d <= 0 {
			return fmt.Errorf("metadata: shapes must be fully specified, got input=%v output=%v",
				m.InputShape, m.OutputShape)
		}
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("metadata: image_size must be positive, got %d", m.ImageSize)
	}
	if want := int64(3 * m.ImageSize * m.ImageSize); m.InputElements() != want {
		return fmt.Errorf("metadata: input_shape %v does not hold a %dx%d RGB image",
			m.InputShape, m.ImageSize, m.ImageSize)
	}
	return nil
}

// InputElements returns the flattened input length.
func (m Metadata) InputElements() int64 { return product(m.InputShape) }

// NumClasses returns the flattened output length.
func (m Metadata) NumClasses() int { return int(product(m.OutputShape)) }

func product(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
