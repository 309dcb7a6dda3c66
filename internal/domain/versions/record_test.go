package versions

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRecord_JSONRoundtrip ensures a record survives encoding and decoding unchanged.
func TestRecord_JSONRoundtrip(t *testing.T) {
	t.Parallel()

	want := &Record{
		Versions: map[string]string{
			"app1070560":    "0.20240916.101795",
			"steam-runtime": "0.20240610.91380",
		},
		Tag: "20241017",
	}

	data, err := json.Marshal(want)
	require.NoError(t, err)
	require.JSONEq(t, `{"app1070560":"0.20240916.101795","steam-runtime":"0.20240610.91380","tag":"20241017"}`, string(data))

	got := NewRecord()
	require.NoError(t, json.Unmarshal(data, got))
	require.Equal(t, want, got)
}

// TestRecord_MarshalWithoutTag omits the tag key when no tag is set.
func TestRecord_MarshalWithoutTag(t *testing.T) {
	t.Parallel()

	r := NewRecord()
	r.Set("steam-runtime", "2")

	data, err := json.Marshal(r)
	require.NoError(t, err)
	require.JSONEq(t, `{"steam-runtime":"2"}`, string(data))
}

// TestRecord_MarshalReservedComponent rejects a component named like the tag key.
func TestRecord_MarshalReservedComponent(t *testing.T) {
	t.Parallel()

	r := NewRecord()
	r.Set(TagKey, "1")

	_, err := json.Marshal(r)
	require.ErrorIs(t, err, errReservedComponent)
}

// TestRecord_UnmarshalMalformed covers invalid JSON, non-string values and null.
func TestRecord_UnmarshalMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax":     `{"app1070560":`,
		"number":     `{"app1070560":1}`,
		"array":      `["app1070560"]`,
		"null":       `null`,
		"nested tag": `{"tag":{"date":"20240101"}}`,
	}
	for name, input := range cases {
		r := NewRecord()
		require.Error(t, json.Unmarshal([]byte(input), r), name)
	}
}

// TestRecord_Version verifies nil-safe lookups.
func TestRecord_Version(t *testing.T) {
	t.Parallel()

	var nilRecord *Record

	_, ok := nilRecord.Version("steam-runtime")
	require.False(t, ok)

	r := &Record{Tag: "20240101"}
	r.Set("steam-runtime", "2")

	v, ok := r.Version("steam-runtime")
	require.True(t, ok)
	require.Equal(t, "2", v)

	_, ok = r.Version("app1070560")
	require.False(t, ok)
}

// TestNewTag formats dates without separators.
func TestNewTag(t *testing.T) {
	t.Parallel()

	require.Equal(t, "20241017", NewTag(time.Date(2024, time.October, 17, 23, 59, 0, 0, time.UTC)))
}
