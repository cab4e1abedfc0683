package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"natours-api/internal/core/domain"
)

var (
	schemaCache = &sync.Map{}
	timeType    = reflect.TypeOf(time.Time{})
)

type column struct {
	name string
	typ  reflect.Type
}

func (c column) ref() clause.Column {
	return clause.Column{Table: clause.CurrentTable, Name: c.name}
}

// Schema is the whitelist of queryable fields of one model, keyed by their
// JSON name.
type Schema struct {
	columns  map[string]column
	identity string
}

// SchemaOf derives the whitelist from a gorm model. Only scalar columns with
// a visible JSON name are queryable; hidden and serialized fields are not.
func SchemaOf(model interface{}) (Schema, error) {
	s, err := schema.Parse(model, schemaCache, schema.NamingStrategy{})
	if err != nil {
		return Schema{}, err
	}

	sch := Schema{columns: make(map[string]column)}
	for _, f := range s.Fields {
		if f.DBName == "" {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.DBName
		}
		typ := f.FieldType
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
		if !scalar(typ) {
			continue
		}
		sch.columns[name] = column{name: f.DBName, typ: typ}
	}
	if s.PrioritizedPrimaryField != nil {
		sch.identity = s.PrioritizedPrimaryField.DBName
	}
	return sch, nil
}

// MustSchemaOf is SchemaOf for package level initialisation.
func MustSchemaOf(model interface{}) Schema {
	sch, err := SchemaOf(model)
	if err != nil {
		panic(err)
	}
	return sch
}

// Has reports whether field is queryable.
func (s Schema) Has(field string) bool {
	_, ok := s.columns[field]
	return ok
}

func scalar(t reflect.Type) bool {
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (c column) convert(field string, raw interface{}) (interface{}, error) {
	s, ok := raw.(string)
	if !ok {
		return raw, nil
	}

	invalid := domain.NewValidation(fmt.Sprintf("Invalid value for %s: %s", field, s))
	if c.typ == timeType {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, invalid
	}

	switch c.typ.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, invalid
		}
		return b, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, invalid
		}
		return f, nil
	}
	return s, nil
}

// ApplyFilters adds the conditions to db as ANDed WHERE clauses.
func ApplyFilters(db *gorm.DB, sch Schema, conds []Condition) (*gorm.DB, error) {
	tx := db
	for _, cond := range conds {
		col, ok := sch.columns[cond.Field]
		if !ok {
			return nil, domain.NewValidation("Invalid filter field: " + cond.Field)
		}

		if cond.Op == OpIn {
			raws, ok := cond.Value.([]string)
			if !ok {
				return nil, domain.NewValidation("Invalid filter value for " + cond.Field)
			}
			values := make([]interface{}, 0, len(raws))
			for _, raw := range raws {
				v, err := col.convert(cond.Field, raw)
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			tx = tx.Where(clause.IN{Column: col.ref(), Values: values})
			continue
		}

		v, err := col.convert(cond.Field, cond.Value)
		if err != nil {
			return nil, err
		}
		switch cond.Op {
		case OpEq:
			tx = tx.Where(clause.Eq{Column: col.ref(), Value: v})
		case OpGt:
			tx = tx.Where(clause.Gt{Column: col.ref(), Value: v})
		case OpGte:
			tx = tx.Where(clause.Gte{Column: col.ref(), Value: v})
		case OpLt:
			tx = tx.Where(clause.Lt{Column: col.ref(), Value: v})
		case OpLte:
			tx = tx.Where(clause.Lte{Column: col.ref(), Value: v})
		default:
			return nil, domain.NewValidation("Invalid filter operator: " + string(cond.Op))
		}
	}
	return tx, nil
}

// Apply adds filters, ordering, projection and pagination to db. Results are
// always ordered by the primary key last so equal sort keys page stably.
func (s *Spec) Apply(db *gorm.DB, sch Schema) (*gorm.DB, error) {
	tx, err := ApplyFilters(db, sch, s.Filters)
	if err != nil {
		return nil, err
	}

	byIdentity := false
	for _, sf := range s.Sort {
		col, ok := sch.columns[sf.Field]
		if !ok {
			return nil, domain.NewValidation("Invalid sort field: " + sf.Field)
		}
		if col.name == sch.identity {
			byIdentity = true
		}
		tx = tx.Order(clause.OrderByColumn{Column: col.ref(), Desc: sf.Desc})
	}
	if sch.identity != "" && !byIdentity {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: sch.identity}})
	}

	if len(s.Fields) > 0 {
		selected := []string{sch.identity}
		seen := map[string]bool{sch.identity: true}
		for _, f := range s.Fields {
			col, ok := sch.columns[f]
			if !ok {
				return nil, domain.NewValidation("Invalid field: " + f)
			}
			if !seen[col.name] {
				seen[col.name] = true
				selected = append(selected, col.name)
			}
		}
		tx = tx.Select(selected)
	}

	return tx.Offset(s.Offset()).Limit(s.Limit), nil
}

// Project trims each JSON encoded record down to the requested fields plus
// the id. With no fields the records are returned unchanged.
func Project(records interface{}, fields []string) (interface{}, error) {
	if len(fields) == 0 {
		return records, nil
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	keep := map[string]bool{"id": true}
	for _, f := range fields {
		keep[f] = true
	}

	out := make([]map[string]json.RawMessage, 0, len(items))
	for _, item := range items {
		projected := make(map[string]json.RawMessage, len(keep))
		for k, v := range item {
			if keep[k] {
				projected[k] = v
			}
		}
		out = append(out, projected)
	}
	return out, nil
}
