package serialization

// NewDefaultSerializerRegistry creates a registry with the json, msgpack and
// yaml serializers; json is the default
func NewDefaultSerializerRegistry() *SerializerRegistry {
	registry := NewSerializerRegistry()
	for _, s := range []ReportSerializer{NewJSONSerializer(), NewMessagePackSerializer(), NewYAMLSerializer()} {
		// names are distinct, registration cannot fail
		_ = registry.RegisterSerializer(s)
	}
	_ = registry.SetDefaultSerializer("json")
	return registry
}

// lookup returns the serializer for format, or the default one when format
// is empty
func lookup(format string) (ReportSerializer, error) {
	registry := NewDefaultSerializerRegistry()
	if format == "" {
		return registry.GetDefaultSerializer()
	}
	return registry.GetSerializer(format)
}

// Serialize encodes r in the given format
func Serialize(r *Report, format string) ([]byte, error) {
	serializer, err := lookup(format)
	if err != nil {
		return nil, err
	}
	return serializer.Serialize(r)
}

// Deserialize decodes a report in the given format
func Deserialize(data []byte, format string) (*Report, error) {
	serializer, err := lookup(format)
	if err != nil {
		return nil, err
	}
	return serializer.Deserialize(data)
}

// ConvertFormat converts a serialized report from one format to another
func ConvertFormat(data []byte, fromFormat, toFormat string) ([]byte, error) {
	return NewDefaultSerializerRegistry().ConvertFormat(data, fromFormat, toFormat)
}

// GetSupportedFormats returns all supported serialization formats
func GetSupportedFormats() []string {
	return NewDefaultSerializerRegistry().ListSerializers()
}

// IsFormatSupported checks if a format is supported
func IsFormatSupported(format string) bool {
	return NewDefaultSerializerRegistry().IsFormatSupported(format)
}
