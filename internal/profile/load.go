package profile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML profile from path and validates it. When expectedID is
// set the profile's id must match it.
func Load(path, expectedID string) (*LogProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log profile: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid log profile at %s: %w", path, err)
	}
	if expectedID != "" && p.ID != expectedID {
		return nil, fmt.Errorf("invalid log profile at %s: expected id '%s' but found '%s'", path, expectedID, p.ID)
	}
	return p, nil
}

// Parse decodes and validates a YAML profile document. Unknown keys are rejected.
func Parse(data []byte) (*LogProfile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p LogProfile
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
