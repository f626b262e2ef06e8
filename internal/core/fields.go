package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fields is an explicit field-update set: recognised field name to new
// value. Values may be raw strings from the command line or typed Go
// values; a nil value clears a nullable column.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Has reports whether name is present with a non-nil, non-empty value.
func (f Fields) Has(name string) bool {
	v, ok := f[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Merge copies every key of other over f.
func (f Fields) Merge(other Fields) Fields {
	for k, v := range other {
		f[k] = v
	}
	return f
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query selects entities by exact-equality filters, paged by insertion order.
type Query struct {
	Limit   int
	Offset  int
	Filters Fields
}

// DefaultQueryLimit bounds a query with no explicit limit.
const DefaultQueryLimit = 100

// FieldType selects how a raw value is coerced before storage.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeDecimal
	TypeDate
)

// Column describes one mutable attribute of an entity kind.
type Column struct {
	Name     string
	Type     FieldType
	Required bool
	// Ref names the kind this column references, if it is a foreign key.
	Ref Kind
	// Derived columns are computed by the store and never taken from input.
	Derived bool
	// Generated columns receive a unique code when left empty on create.
	Generated bool
}

// Schema is the fixed field set of one entity kind.
type Schema struct {
	Kind    Kind
	Columns []Column
}

// Table returns the storage table name of the kind.
func (s Schema) Table() string { return string(s.Kind) }

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames lists every stored column, base columns first.
func (s Schema) ColumnNames() []string {
	names := []string{FieldID, FieldCreatedTime, FieldUpdatedTime}
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// IsImmutable reports whether name is one of the identity/timestamp columns.
func IsImmutable(name string) bool {
	switch name {
	case FieldID, FieldCreatedTime, FieldUpdatedTime:
		return true
	}
	return false
}

// Normalized is the outcome of validating a Fields set against a Schema.
type Normalized struct {
	// Values holds coerced values ready for storage, keyed by column.
	Values map[string]any
	// Skipped lists read-only fields that were present and ignored.
	Skipped []string
}

// Normalize validates names and coerces values. Read-only fields are
// reported in Skipped rather than rejected; unknown names are an error.
func (s Schema) Normalize(f Fields) (Normalized, error) {
	out := Normalized{Values: make(map[string]any, len(f))}
	for _, name := range f.Keys() {
		raw := f[name]
		if IsImmutable(name) {
			out.Skipped = append(out.Skipped, name)
			continue
		}
		col, ok := s.Column(name)
		if !ok {
			return Normalized{}, NewValidationError(s.Kind, name, "unknown field")
		}
		if col.Derived {
			out.Skipped = append(out.Skipped, name)
			continue
		}
		v, err := coerce(col, raw)
		if err != nil {
			return Normalized{}, &ValidationError{Kind: s.Kind, Field: name, Reason: err.Error(), Err: err}
		}
		if v == nil && col.Required {
			return Normalized{}, NewValidationError(s.Kind, name, "required field cannot be empty")
		}
		out.Values[name] = v
	}
	return out, nil
}

// CheckRequired fails when a required, non-generated column has no value.
func (s Schema) CheckRequired(values map[string]any) error {
	for _, c := range s.Columns {
		if !c.Required || c.Generated || c.Derived {
			continue
		}
		if v, ok := values[c.Name]; !ok || v == nil {
			return NewValidationError(s.Kind, c.Name, "required field missing")
		}
	}
	return nil
}

// NormalizeFilters coerces query filters. Every column, including the
// base ones, may be filtered on.
func (s Schema) NormalizeFilters(f Fields) (map[string]any, error) {
	out := make(map[string]any, len(f))
	for _, name := range f.Keys() {
		raw := f[name]
		var col Column
		switch name {
		case FieldID:
			col = Column{Name: FieldID, Type: TypeInt}
		case FieldCreatedTime, FieldUpdatedTime:
			return nil, NewValidationError(s.Kind, name, "timestamps cannot be filtered on")
		default:
			c, ok := s.Column(name)
			if !ok {
				return nil, NewValidationError(s.Kind, name, "unknown field")
			}
			col = c
		}
		v, err := coerce(col, raw)
		if err != nil {
			return nil, &ValidationError{Kind: s.Kind, Field: name, Reason: err.Error(), Err: err}
		}
		out[name] = v
	}
	return out, nil
}

func coerce(col Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			return nil, nil
		}
		raw = s
	}

	switch col.Type {
	case TypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case TypeInt:
		switch v := raw.(type) {
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %q", v)
			}
			return n, nil
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case *int64:
			if v == nil {
				return nil, nil
			}
			return *v, nil
		}
	case TypeDecimal:
		switch v := raw.(type) {
		case string:
			d, err := ParseAmount(v)
			if err != nil {
				return nil, fmt.Errorf("expected a decimal number, got %q", v)
			}
			return d.String(), nil
		case decimal.Decimal:
			return v.String(), nil
		case int:
			return decimal.NewFromInt(int64(v)).String(), nil
		case int64:
			return decimal.NewFromInt(v).String(), nil
		}
	case TypeDate:
		switch v := raw.(type) {
		case string:
			d, err := ParseDate(v)
			if err != nil {
				return nil, fmt.Errorf("expected a YYYY-MM-DD date, got %q", v)
			}
			return d.String(), nil
		case Date:
			return v.String(), nil
		case *Date:
			if v == nil {
				return nil, nil
			}
			return v.String(), nil
		case time.Time:
			return v.Format(DateLayout), nil
		}
	}
	return nil, fmt.Errorf("unsupported value of type %T", raw)
}

// Schemas of every entity kind.
var (
	AccountSchema = Schema{Kind: KindAccount, Columns: []Column{
		{Name: FieldName, Type: TypeString, Required: true},
	}}

	CategorySchema = Schema{Kind: KindCategory, Columns: []Column{
		{Name: FieldName, Type: TypeString, Required: true},
	}}

	SubcategorySchema = Schema{Kind: KindSubcategory, Columns: []Column{
		{Name: FieldName, Type: TypeString, Required: true},
		{Name: FieldCategoryID, Type: TypeInt, Required: true, Ref: KindCategory},
	}}

	BusinessSchema = Schema{Kind: KindBusiness, Columns: []Column{
		{Name: FieldName, Type: TypeString, Required: true},
		{Name: FieldCode, Type: TypeString, Required: true, Generated: true},
		{Name: FieldDefaultCategoryID, Type: TypeInt, Required: true, Ref: KindCategory},
		{Name: FieldDefaultSubcategoryID, Type: TypeInt, Required: true, Ref: KindSubcategory},
	}}

	PeriodSchema = Schema{Kind: KindPeriod, Columns: []Column{
		{Name: FieldCode, Type: TypeString, Required: true, Derived: true},
		{Name: FieldPeriodStart, Type: TypeDate, Required: true},
		{Name: FieldPeriodEnd, Type: TypeDate, Required: true, Derived: true},
	}}

	TransactionSchema = Schema{Kind: KindTransaction, Columns: []Column{
		{Name: FieldCode, Type: TypeString, Required: true, Generated: true},
		{Name: FieldAmount, Type: TypeDecimal, Required: true},
		{Name: FieldTransactionDate, Type: TypeDate},
		{Name: FieldAccountID, Type: TypeInt, Required: true, Ref: KindAccount},
		{Name: FieldAccountForID, Type: TypeInt, Required: true, Ref: KindAccount},
		{Name: FieldCategoryID, Type: TypeInt, Required: true, Ref: KindCategory},
		{Name: FieldSubcategoryID, Type: TypeInt, Required: true, Ref: KindSubcategory},
		{Name: FieldBusinessID, Type: TypeInt, Ref: KindBusiness},
		{Name: FieldPeriodID, Type: TypeInt, Required: true, Ref: KindPeriod},
		{Name: FieldReversesID, Type: TypeInt, Ref: KindTransaction},
	}}
)

// SchemaFor returns the schema of kind.
func SchemaFor(kind Kind) (Schema, bool) {
	switch kind {
	case KindAccount:
		return AccountSchema, true
	case KindCategory:
		return CategorySchema, true
	case KindSubcategory:
		return SubcategorySchema, true
	case KindBusiness:
		return BusinessSchema, true
	case KindPeriod:
		return PeriodSchema, true
	case KindTransaction:
		return TransactionSchema, true
	}
	return Schema{}, false
}
