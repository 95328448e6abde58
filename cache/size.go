package cache

import "github.com/goccy/go-json"

// DefaultEntrySize is the size assumed for values that cannot be measured.
const DefaultEntrySize int64 = 1024

// Sizer is implemented by values that know their own footprint.
type Sizer interface {
	SizeBytes() int64
}

// EstimateSize returns the accounted size of v in bytes. It never fails:
// values that cannot be encoded are charged DefaultEntrySize. The result is
// always at least 1.
func EstimateSize(v any) int64 {
	var n int64
	switch val := v.(type) {
	case Sizer:
		n = val.SizeBytes()
	case []byte:
		n = int64(len(val))
	case string:
		n = int64(len(val))
	case json.RawMessage:
		n = int64(len(val))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return DefaultEntrySize
		}
		n = int64(len(data))
	}

	if n < 1 {
		return 1
	}
	return n
}
