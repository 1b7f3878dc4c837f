package cache

import (
	"errors"
	"testing"

	"github.com/LavishGent/bulwark/internal/types"
)

func TestJSONSerializerMarshal(t *testing.T) {
	s := NewJSONSerializer()

	t.Run("marshals struct", func(t *testing.T) {
		//nolint:govet // Test struct - alignment not critical
		type User struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		}

		data, err := s.Marshal(User{ID: 1, Name: "Test"})
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if expected := `{"id":1,"name":"Test"}`; string(data) != expected {
			t.Errorf("Marshal() = %s, want %s", string(data), expected)
		}
	})

	t.Run("wraps unsupported types", func(t *testing.T) {
		_, err := s.Marshal(func() {})
		if !errors.Is(err, types.ErrSerializationFail) {
			t.Errorf("Marshal() error = %v, want ErrSerializationFail", err)
		}
	})
}

func TestJSONSerializerUnmarshal(t *testing.T) {
	s := NewJSONSerializer()

	t.Run("unmarshals into map", func(t *testing.T) {
		var m map[string]int
		if err := s.Unmarshal([]byte(`{"a":1,"b":2}`), &m); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if m["a"] != 1 || m["b"] != 2 {
			t.Errorf("Unmarshal() = %v", m)
		}
	})

	t.Run("wraps invalid input", func(t *testing.T) {
		var v string
		err := s.Unmarshal([]byte("{not json"), &v)
		if !errors.Is(err, types.ErrSerializationFail) {
			t.Errorf("Unmarshal() error = %v, want ErrSerializationFail", err)
		}
	})
}
