package cache

import (
	"encoding/json"
	"fmt"

	"github.com/LavishGent/bulwark/internal/types"
)

// Serializer converts stale values to and from bytes.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer implements Serializer using JSON encoding.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSerializationFail, err)
	}
	return data, nil
}

func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %w", types.ErrSerializationFail, err)
	}
	return nil
}

var _ Serializer = (*JSONSerializer)(nil)
