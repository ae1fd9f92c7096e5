package serialization

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MessagePackSerializer implements ReportSerializer for MessagePack format
type MessagePackSerializer struct {
	version string
}

// NewMessagePackSerializer creates a new MessagePack serializer
func NewMessagePackSerializer() *MessagePackSerializer {
	return &MessagePackSerializer{
		version: ReportVersion,
	}
}

// Serialize converts a report to MessagePack bytes
func (mps *MessagePackSerializer) Serialize(r *Report) ([]byte, error) {
	if r == nil {
		return nil, NewSerializationError("msgpack", "serialize", "report is nil")
	}

	data, err := msgpack.Marshal(r)
	if err != nil {
		return nil, NewSerializationError("msgpack", "serialize", err.Error())
	}
	return data, nil
}

// Deserialize converts MessagePack bytes back to a report
func (mps *MessagePackSerializer) Deserialize(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, NewSerializationError("msgpack", "deserialize", "data is empty")
	}

	var r Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, NewSerializationError("msgpack", "deserialize", err.Error())
	}
	if err := checkVersion(mps, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetName returns the name of the serializer
func (mps *MessagePackSerializer) GetName() string {
	return "msgpack"
}

// GetVersion returns the version of the serializer
func (mps *MessagePackSerializer) GetVersion() string {
	return mps.version
}

// SupportsVersion checks if the serializer supports a specific version
func (mps *MessagePackSerializer) SupportsVersion(version string) bool {
	return supportsMajor(version)
}
