package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SectionList persists ordered sections as a JSONB column.
type SectionList []Section

// Value implements driver.Valuer.
func (s SectionList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Section(s))
}

// Scan implements sql.Scanner.
func (s *SectionList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SectionList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan sections: unsupported type %T", src)
	}
	var out []Section
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan sections: %w", err)
	}
	if out == nil {
		out = []Section{}
	}
	*s = out
	return nil
}
