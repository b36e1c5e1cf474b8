package domain

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// MediaList is a list of media references. Null entries are dropped on
// decode so a stored list never carries placeholder values.
type MediaList []string

// UnmarshalJSON decodes a JSON array, skipping null elements
func (m *MediaList) UnmarshalJSON(data []byte) error {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	*m = compactList(raw)
	return nil
}

// UnmarshalYAML decodes a YAML sequence, skipping null elements
func (m *MediaList) UnmarshalYAML(value *yaml.Node) error {
	var raw []*string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	*m = compactList(raw)
	return nil
}

func compactList(raw []*string) MediaList {
	out := make(MediaList, 0, len(raw))
	for _, v := range raw {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
