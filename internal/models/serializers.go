package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// FloatVector stores an embedding as a JSON array column. A nil vector maps to
// SQL NULL so "has been embedded" stays queryable with IS NOT NULL.
type FloatVector []float64

func (v FloatVector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal([]float64(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *FloatVector) Scan(value interface{}) error {
	if v == nil {
		return fmt.Errorf("models.FloatVector: Scan on nil pointer")
	}
	if value == nil {
		*v = nil
		return nil
	}

	var raw string
	switch val := value.(type) {
	case []byte:
		raw = string(val)
	case string:
		raw = val
	default:
		return fmt.Errorf("models.FloatVector: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*v = nil
		return nil
	}

	var arr []float64
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return fmt.Errorf("models.FloatVector: %w", err)
	}
	*v = arr
	return nil
}

// StringArray stores string lists as JSON, while tolerating legacy plain-string data.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: Scan on nil pointer")
	}
	if value == nil {
		*a = []string{}
		return nil
	}

	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.StringArray: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*a = []string{}
		return nil
	}

	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		*a = arr
		return nil
	}

	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		if single == "" {
			*a = []string{}
		} else {
			*a = []string{single}
		}
		return nil
	}

	*a = []string{raw}
	return nil
}

// JSONMap stores a loosely structured JSON document (illustration templates).
// A nil map maps to SQL NULL.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if m == nil {
		return fmt.Errorf("models.JSONMap: Scan on nil pointer")
	}
	if value == nil {
		*m = nil
		return nil
	}

	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.JSONMap: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*m = nil
		return nil
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("models.JSONMap: %w", err)
	}
	*m = parsed
	return nil
}
