package cache

import "encoding/json"

const (
	entryOverhead     = 64
	fallbackEntrySize = 1024
)

// estimateEntrySize returns a best-effort byte count for a key/value pair.
// It only feeds the memory budget.
func estimateEntrySize(key string, value any) int64 {
	return int64(len(key))*2 + estimateValueSize(value) + entryOverhead
}

func estimateValueSize(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return int64(len(v)) * 2
	case []byte:
		return int64(len(v))
	case json.RawMessage:
		return int64(len(v))
	case bool:
		return 4
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64:
		return 8
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fallbackEntrySize
	}
	return int64(len(data)) * 2
}
