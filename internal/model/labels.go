package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultLabels is the class list of the shipped fracture classifier, in
// output index order.
var DefaultLabels = []string{
	"Avulsion fracture",
	"Comminuted fracture",
	"Compression-Crush fracture",
	"Fracture Dislocation",
	"Greenstick fracture",
	"Hairline Fracture",
	"Impacted fracture",
	"Intra-articular fracture",
	"Longitudinal fracture",
	"Oblique fracture",
	"Pathological fracture",
	"Spiral Fracture",
	"Test",
	"Train",
}

// LoadMetadata reads a metadata file. JSON and YAML are picked by extension;
// YAML files may carry an index keyed "names" map instead of "classes".
func LoadMetadata(path string) (Metadata, error) {
	var metadata Metadata

	data, err := os.ReadFile(path)
	if err != nil {
		return metadata, errors.Wrap(err, "failed to read metadata")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc struct {
			Metadata `yaml:",inline"`
			Names    map[int]string `yaml:"names"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return metadata, errors.Wrap(err, "failed to parse metadata")
		}
		metadata = doc.Metadata
		if len(metadata.Classes) == 0 && len(doc.Names) > 0 {
			classes, err := orderedNames(doc.Names)
			if err != nil {
				return metadata, err
			}
			metadata.Classes = classes
		}
	default:
		if err := json.Unmarshal(data, &metadata); err != nil {
			return metadata, errors.Wrap(err, "failed to parse metadata")
		}
	}

	return metadata, nil
}

// ParseNames decodes a class-name map such as "{0: 'a', 1: 'b'}", the form
// classifier exports embed in the model's custom metadata.
func ParseNames(raw string) ([]string, error) {
	var names map[int]string
	if err := yaml.Unmarshal([]byte(raw), &names); err != nil {
		return nil, errors.Wrap(err, "failed to parse class names")
	}
	return orderedNames(names)
}

func orderedNames(names map[int]string) ([]string, error) {
	idx := make([]int, 0, len(names))
	for i := range names {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	classes := make([]string, len(idx))
	for pos, i := range idx {
		if i != pos {
			return nil, errors.Errorf("class names are not contiguous: missing index %d", pos)
		}
		classes[pos] = names[i]
	}
	return classes, nil
}
