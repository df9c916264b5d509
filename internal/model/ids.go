package model

import (
	"database/sql/driver"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func NewID() string {
	return uuid.NewString()
}

// ParseID validates an id coming from a path or a body.
func ParseID(field, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", Invalid(field, "malformed id")
	}
	return id.String(), nil
}

// IDList is an ordered list of child ids kept on a parent row.
// Postgres stores it as text[]; other dialects store the array literal as text.
type IDList pq.StringArray

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	return pq.StringArray(l).Value()
}

func (l *IDList) Scan(src any) error {
	return (*pq.StringArray)(l).Scan(src)
}

func (IDList) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (l IDList) Contains(id string) bool {
	return slices.Contains(l, id)
}

// With returns the list with id appended, unless already present.
func (l IDList) With(id string) (IDList, bool) {
	if l.Contains(id) {
		return l, false
	}
	out := make(IDList, 0, len(l)+1)
	out = append(out, l...)
	return append(out, id), true
}

// Without returns the list without id.
func (l IDList) Without(id string) (IDList, bool) {
	if !l.Contains(id) {
		return l, false
	}
	out := make(IDList, 0, len(l))
	for _, v := range l {
		if v != id {
			out = append(out, v)
		}
	}
	return out, true
}
