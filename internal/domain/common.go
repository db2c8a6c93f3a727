package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice is a []string persisted as a JSON array in a single text
// column, used for gorm-backed fields (e.g. Shot.CharacterRefs) where a
// join table would be overkill for the pipeline's read patterns.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain.StringSlice: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(s))
}

// StringMap persists a map[string]interface{} as JSON text, used for
// free-form metadata fields the way the teacher's Job.Metadata did.
type StringMap map[string]interface{}

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	return string(b), err
}

func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("domain.StringMap: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, (*map[string]interface{})(m))
}
