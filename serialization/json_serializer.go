package serialization

import (
	"encoding/json"
)

// JSONSerializer implements ReportSerializer for JSON format
type JSONSerializer struct {
	version string
	indent  bool
}

// NewJSONSerializer creates a new JSON serializer
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{
		version: ReportVersion,
		indent:  true,
	}
}

// NewCompactJSONSerializer creates a JSON serializer writing a single line
func NewCompactJSONSerializer() *JSONSerializer {
	return &JSONSerializer{version: ReportVersion}
}

// Serialize converts a report to JSON bytes
func (js *JSONSerializer) Serialize(r *Report) ([]byte, error) {
	if r == nil {
		return nil, NewSerializationError("json", "serialize", "report is nil")
	}

	var (
		data []byte
		err  error
	)
	if js.indent {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return nil, NewSerializationError("json", "serialize", err.Error())
	}
	return data, nil
}

// Deserialize converts JSON bytes back to a report
func (js *JSONSerializer) Deserialize(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, NewSerializationError("json", "deserialize", "data is empty")
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, NewSerializationError("json", "deserialize", err.Error())
	}
	if err := checkVersion(js, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetName returns the name of the serializer
func (js *JSONSerializer) GetName() string {
	return "json"
}

// GetVersion returns the version of the serializer
func (js *JSONSerializer) GetVersion() string {
	return js.version
}

// SupportsVersion checks if the serializer supports a specific version
func (js *JSONSerializer) SupportsVersion(version string) bool {
	return supportsMajor(version)
}
