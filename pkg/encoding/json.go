package encoding

import (
	"encoding/json"
)

// LoadAndUnmarshalJSON loads data from the specified path and decodes it into
// the specified structure.
func LoadAndUnmarshalJSON(path string, value interface{}) error {
	return LoadAndUnmarshal(path, func(data []byte) error {
		return json.Unmarshal(data, value)
	})
}

// MarshalJSON encodes the specified structure as JSON bytes.
func MarshalJSON(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

// MarshalAndSaveJSON encodes the specified structure and writes it atomically
// to the specified path.
func MarshalAndSaveJSON(path string, value interface{}) error {
	return MarshalAndSave(path, func() ([]byte, error) {
		return json.Marshal(value)
	})
}
