package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"natours-api/internal/pkg/query"
)

// Scope narrows every read of a repository, e.g. hiding inactive users.
type Scope func(*gorm.DB) *gorm.DB

// gormRepository implements Repository for any gorm model keyed by a
// string "id" column
type gormRepository[T any] struct {
	db        *gorm.DB
	schema    query.Schema
	scopes    []Scope
	relations map[string]Scope
}

func newGormRepository[T any](db *gorm.DB, scopes ...Scope) *gormRepository[T] {
	return &gormRepository[T]{
		db:     db,
		schema: query.MustSchemaOf(new(T)),
		scopes: scopes,
	}
}

// relation registers how a named relation is populated when the default
// Preload would load too much
func (r *gormRepository[T]) relation(name string, scope Scope) *gormRepository[T] {
	if r.relations == nil {
		r.relations = make(map[string]Scope)
	}
	r.relations[name] = scope
	return r
}

// NewRepository creates a repository for model T with the given read scopes
func NewRepository[T any](db *gorm.DB, scopes ...Scope) Repository[T] {
	return newGormRepository[T](db, scopes...)
}

func byID(id string) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}, Value: id}
}

func (r *gormRepository[T]) reads(ctx context.Context) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(new(T))
	for _, scope := range r.scopes {
		tx = scope(tx)
	}
	return tx
}

// Create inserts a record. Associations are written by the resource
// repositories that own them.
func (r *gormRepository[T]) Create(ctx context.Context, record *T) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error
}

// FindByID gets a record by ID, preloading the named relations
func (r *gormRepository[T]) FindByID(ctx context.Context, id string, preload ...string) (*T, error) {
	var record T
	tx := r.reads(ctx)
	for _, rel := range preload {
		if scope, ok := r.relations[rel]; ok {
			tx = scope(tx)
			continue
		}
		tx = tx.Preload(rel)
	}
	if err := tx.Where(byID(id)).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOne gets the first record matching every condition
func (r *gormRepository[T]) FindOne(ctx context.Context, conds ...query.Condition) (*T, error) {
	tx, err := query.ApplyFilters(r.reads(ctx), r.schema, conds)
	if err != nil {
		return nil, err
	}
	var record T
	if err := tx.First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Find lists the records selected by spec
func (r *gormRepository[T]) Find(ctx context.Context, spec *query.Spec) ([]T, error) {
	tx, err := spec.Apply(r.reads(ctx), r.schema)
	if err != nil {
		return nil, err
	}
	records := make([]T, 0)
	if err := tx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateByID overwrites every column of the stored record with record
func (r *gormRepository[T]) UpdateByID(ctx context.Context, id string, record *T) error {
	return updateByID(r.db.WithContext(ctx), id, record)
}

func updateByID[T any](tx *gorm.DB, id string, record *T) error {
	res := tx.Model(new(T)).
		Where(byID(id)).
		Select("*").
		Omit(clause.Associations, "id", "created_at").
		Updates(record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByID removes a record and returns it as it was before deletion
func (r *gormRepository[T]) DeleteByID(ctx context.Context, id string) (*T, error) {
	record, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Where(byID(id)).Delete(new(T))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}
