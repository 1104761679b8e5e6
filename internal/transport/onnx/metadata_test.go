package onnx

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMeta(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model_metadata.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMetadata(t *testing.T) {
	path := writeMeta(t, `{
		"input_shape": [1, 224, 224, 3],
		"output_shape": [1, 27],
		"image_size": 224,
		"layout": "nhwc",
		"scale": "raw"
	}`)

	m, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.InputName != "input" || m.OutputName != "output" {
		t.Errorf("default tensor names not applied: %q/%q", m.InputName, m.OutputName)
	}
	if m.NumClasses() != 27 {
		t.Errorf("NumClasses = %d, want 27", m.NumClasses())
	}
	if m.InputElements() != 224*224*3 {
		t.Errorf("InputElements = %d", m.InputElements())
	}
}

func TestLoadMetadata_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":        `{`,
		"missing shapes":  `{"image_size": 224}`,
		"dynamic batch":   `{"input_shape": [-1, 224, 224, 3], "output_shape": [1, 3], "image_size": 224}`,
		"size mismatch":   `{"input_shape": [1, 128, 128, 3], "output_shape": [1, 3], "image_size": 224}`,
		"zero image size": `{"input_shape": [1, 3], "output_shape": [1, 3], "image_size": 0}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadMetadata(writeMeta(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
