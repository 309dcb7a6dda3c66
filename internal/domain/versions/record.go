package versions

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TagKey is the manifest key holding the build tag.
const TagKey = "tag"

// TagLayout formats build tags as YYYYMMDD.
const TagLayout = "20060102"

var (
	// errReservedComponent is returned when a component uses the tag key as its name.
	errReservedComponent = errors.New("component name is reserved")
	// errNonStringValue is returned when a manifest value is not a JSON string.
	errNonStringValue = errors.New("manifest value must be a string")
)

// Record is a set of component versions plus an optional build tag.
type Record struct {
	// Versions maps component names to version strings.
	Versions map[string]string
	// Tag is the date-based build tag, empty when unknown.
	Tag string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		Versions: make(map[string]string),
	}
}

// NewTag formats t as a build tag without separators.
func NewTag(t time.Time) string {
	return t.Format(TagLayout)
}

// Set stores the version of a component.
func (r *Record) Set(component, version string) {
	if r.Versions == nil {
		r.Versions = make(map[string]string)
	}

	r.Versions[component] = version
}

// Version returns the version of a component and whether it is known.
func (r *Record) Version(component string) (string, bool) {
	if r == nil {
		return "", false
	}

	v, ok := r.Versions[component]

	return v, ok
}

// MarshalJSON encodes the record as a flat object of component versions with an optional "tag" key.
func (r *Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Versions)+1)

	for name, v := range r.Versions {
		if name == TagKey {
			return nil, fmt.Errorf("%s: %w", name, errReservedComponent)
		}

		flat[name] = v
	}

	if r.Tag != "" {
		flat[TagKey] = r.Tag
	}

	return json.Marshal(flat)
}

// UnmarshalJSON decodes a flat manifest object. Every value must be a string.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == nil {
		return fmt.Errorf("null manifest: %w", errNonStringValue)
	}

	decoded := NewRecord()

	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("%s: %w", key, errNonStringValue)
		}

		if key == TagKey {
			decoded.Tag = s
			continue
		}

		decoded.Versions[key] = s
	}

	*r = *decoded

	return nil
}
