package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Photo is the CDN metadata stored inline on a product row.
type Photo struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Filename  string     `json:"filename,omitempty"`
	FileSize  int64      `json:"file_size,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (p Photo) Value() (driver.Value, error) {
	return marshalJSON(p)
}

func (p *Photo) Scan(src any) error {
	if src == nil {
		*p = Photo{}
		return nil
	}
	return scanJSON(src, p)
}

// IsZero reports whether the photo carries no CDN reference.
func (p *Photo) IsZero() bool {
	return p == nil || p.ID == ""
}

// PhotoList is an ordered gallery stored as a JSON array.
type PhotoList []Photo

func (l PhotoList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return marshalJSON([]Photo(l))
}

func (l *PhotoList) Scan(src any) error {
	if src == nil {
		*l = PhotoList{}
		return nil
	}
	return scanJSON(src, (*[]Photo)(l))
}

// IDs returns the photo ids in gallery order.
func (l PhotoList) IDs() []string {
	out := make([]string, 0, len(l))
	for _, p := range l {
		out = append(out, p.ID)
	}
	return out
}

// StringList is a JSON array of strings, used for video urls.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return marshalJSON([]string(l))
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}
	return scanJSON(src, (*[]string)(l))
}

func marshalJSON(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func scanJSON(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("dbtypes: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
