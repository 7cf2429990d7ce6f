package export

import (
	"encoding/json"
	"fmt"

	"github.com/imyousuf/megaparser/internal/model"
)

// SimpleJSONExporter writes the full analyzed batch as indented JSON. The
// document is lossless and can be read back with DecodeSimpleJSON.
type SimpleJSONExporter struct{}

// NewSimpleJSONExporter creates the SimpleJson exporter.
func NewSimpleJSONExporter() *SimpleJSONExporter {
	return &SimpleJSONExporter{}
}

func (e *SimpleJSONExporter) ID() string { return SimpleJSON }

func (e *SimpleJSONExporter) Extension() string { return "json" }

func (e *SimpleJSONExporter) Export(files []model.FileObject) (string, error) {
	if files == nil {
		files = []model.FileObject{}
	}
	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal files: %w", err)
	}
	return string(data), nil
}

// DecodeSimpleJSON parses a document produced by SimpleJSONExporter.
func DecodeSimpleJSON(data []byte) ([]model.FileObject, error) {
	var files []model.FileObject
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", SimpleJSON, err)
	}
	if files == nil {
		return nil, fmt.Errorf("decode %s document: expected a JSON array", SimpleJSON)
	}
	for i, f := range files {
		if f.Path == "" {
			return nil, fmt.Errorf("decode %s document: entry %d has no path", SimpleJSON, i)
		}
		if files[i].Metrics == nil {
			files[i].Metrics = make(map[string]float64)
		}
	}
	return files, nil
}
