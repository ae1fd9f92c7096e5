package serialization

import (
	"gopkg.in/yaml.v3"
)

// YAMLSerializer implements ReportSerializer for YAML format
type YAMLSerializer struct {
	version string
}

// NewYAMLSerializer creates a new YAML serializer
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{version: ReportVersion}
}

// Serialize converts a report to YAML
func (ys *YAMLSerializer) Serialize(r *Report) ([]byte, error) {
	if r == nil {
		return nil, NewSerializationError("yaml", "serialize", "report is nil")
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, NewSerializationError("yaml", "serialize", err.Error())
	}
	return data, nil
}

// Deserialize converts YAML back to a report
func (ys *YAMLSerializer) Deserialize(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, NewSerializationError("yaml", "deserialize", "data is empty")
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, NewSerializationError("yaml", "deserialize", err.Error())
	}
	if err := checkVersion(ys, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetName returns the name of the serializer
func (ys *YAMLSerializer) GetName() string { return "yaml" }

// GetVersion returns the version of the serializer
func (ys *YAMLSerializer) GetVersion() string { return ys.version }

// SupportsVersion checks if the serializer supports a specific version
func (ys *YAMLSerializer) SupportsVersion(version string) bool { return supportsMajor(version) }
