package serialization

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ReportSerializer encodes and decodes evaluation reports
type ReportSerializer interface {
	// Serialize converts a report to bytes
	Serialize(r *Report) ([]byte, error)

	// Deserialize converts bytes back to a report
	Deserialize(data []byte) (*Report, error)

	// GetName returns the name of the serializer
	GetName() string

	// GetVersion returns the report version the serializer writes
	GetVersion() string

	// SupportsVersion checks if the serializer can read a report version
	SupportsVersion(version string) bool
}

// SerializationError represents an error that occurred during serialization
type SerializationError struct {
	Operation string
	Message   string
	Format    string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("[%s serialization error] %s", e.Format, e.Message)
}

// NewSerializationError creates a new serialization error
func NewSerializationError(format, operation, message string) *SerializationError {
	return &SerializationError{
		Format:    format,
		Operation: operation,
		Message:   message,
	}
}

// supportsMajor accepts every version with the major version of ReportVersion
func supportsMajor(version string) bool {
	major, _, _ := strings.Cut(ReportVersion, ".")
	return version == ReportVersion || strings.HasPrefix(version, major+".")
}

// checkVersion rejects decoded reports of an unsupported version
func checkVersion(s ReportSerializer, r *Report) error {
	if r.Version != "" && !s.SupportsVersion(r.Version) {
		return NewSerializationError(s.GetName(), "deserialize",
			fmt.Sprintf("version '%s' not supported", r.Version))
	}
	return nil
}

// SerializerRegistry manages multiple serializers
type SerializerRegistry struct {
	serializers       map[string]ReportSerializer
	defaultSerializer string
}

// NewSerializerRegistry creates a new serializer registry
func NewSerializerRegistry() *SerializerRegistry {
	return &SerializerRegistry{
		serializers:       make(map[string]ReportSerializer),
		defaultSerializer: "json",
	}
}

// RegisterSerializer registers a serializer
func (sr *SerializerRegistry) RegisterSerializer(serializer ReportSerializer) error {
	name := serializer.GetName()
	if _, exists := sr.serializers[name]; exists {
		return fmt.Errorf("serializer '%s' is already registered", name)
	}

	sr.serializers[name] = serializer
	return nil
}

// GetSerializer returns a serializer by name
func (sr *SerializerRegistry) GetSerializer(name string) (ReportSerializer, error) {
	serializer, exists := sr.serializers[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("serializer '%s' not found", name)
	}
	return serializer, nil
}

// GetDefaultSerializer returns the default serializer
func (sr *SerializerRegistry) GetDefaultSerializer() (ReportSerializer, error) {
	if sr.defaultSerializer == "" {
		return nil, errors.New("no default serializer configured")
	}
	return sr.GetSerializer(sr.defaultSerializer)
}

// SetDefaultSerializer sets the default serializer
func (sr *SerializerRegistry) SetDefaultSerializer(name string) error {
	if _, exists := sr.serializers[name]; !exists {
		return fmt.Errorf("serializer '%s' not found", name)
	}

	sr.defaultSerializer = name
	return nil
}

// ListSerializers returns the sorted names of all registered serializers
func (sr *SerializerRegistry) ListSerializers() []string {
	names := make([]string, 0, len(sr.serializers))
	for name := range sr.serializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConvertFormat converts a serialized report from one format to another
func (sr *SerializerRegistry) ConvertFormat(data []byte, fromFormat, toFormat string) ([]byte, error) {
	fromSerializer, err := sr.GetSerializer(fromFormat)
	if err != nil {
		return nil, err
	}

	report, err := fromSerializer.Deserialize(data)
	if err != nil {
		return nil, err
	}

	toSerializer, err := sr.GetSerializer(toFormat)
	if err != nil {
		return nil, err
	}
	return toSerializer.Serialize(report)
}

// IsFormatSupported checks if a format is supported
func (sr *SerializerRegistry) IsFormatSupported(format string) bool {
	_, exists := sr.serializers[strings.ToLower(format)]
	return exists
}
