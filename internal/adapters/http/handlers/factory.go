package handlers

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/repositories"
	"natours-api/internal/core/domain"
	"natours-api/internal/pkg/query"
	"natours-api/internal/pkg/response"
	"natours-api/internal/pkg/validation"
)

// WriteOp tells a resource hook which write it runs for
type WriteOp int

const (
	OpCreate WriteOp = iota
	OpUpdate
	OpDelete
)

// Resource describes how the generic CRUD handlers expose one model
type Resource[T any] struct {
	Repo repositories.Repository[T]

	// Writable lists the JSON keys a create accepts. Updatable does the same
	// for updates and falls back to Writable.
	Writable  []string
	Updatable []string

	// New returns an empty record carrying the model defaults
	New func() *T

	// Scope narrows every list, e.g. to the tour of a nested route
	Scope func(c *fiber.Ctx) []query.Condition

	// Populate names the relations Get loads
	Populate []string

	// Prepare derives fields before a create or update is validated
	Prepare func(c *fiber.Ctx, op WriteOp, record *T) error

	// OnWrite runs after a committed write. before is nil for creates and
	// after is nil for deletes.
	OnWrite func(op WriteOp, before, after *T)
}

func (r *Resource[T]) newRecord() *T {
	if r.New != nil {
		return r.New()
	}
	return new(T)
}

func (r *Resource[T]) updatable() []string {
	if r.Updatable != nil {
		return r.Updatable
	}
	return r.Writable
}

// List returns the records selected by the request's filter, sort,
// fields and paging parameters
func List[T any](r *Resource[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		spec, err := query.Parse(queryParams(c))
		if err != nil {
			return err
		}
		if r.Scope != nil {
			spec.Where(r.Scope(c)...)
		}

		records, err := r.Repo.Find(c.UserContext(), spec)
		if err != nil {
			return storeError(err)
		}

		data, err := query.Project(records, spec.Fields)
		if err != nil {
			return domain.NewInternal("projection failed", err)
		}

		return response.List(c, len(records), fiber.Map{"data": data})
	}
}

// Get returns one record with its populated relations
func Get[T any](r *Resource[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		record, err := r.Repo.FindByID(c.UserContext(), c.Params("id"), r.Populate...)
		if err != nil {
			return storeError(err)
		}
		return response.Success(c, fiber.Map{"data": record})
	}
}

// Create validates and inserts a record built from the request body
func Create[T any](r *Resource[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		record := r.newRecord()
		if err := decodeBody(c.Body(), r.Writable, record); err != nil {
			return err
		}

		if r.Prepare != nil {
			if err := r.Prepare(c, OpCreate, record); err != nil {
				return err
			}
		}
		if err := validation.Struct(record); err != nil {
			return err
		}

		if err := r.Repo.Create(c.UserContext(), record); err != nil {
			return storeError(err)
		}

		if r.OnWrite != nil {
			r.OnWrite(OpCreate, nil, record)
		}
		return response.Created(c, fiber.Map{"data": record})
	}
}

// Update applies a partial body to a stored record and re-validates the
// whole record before writing it
func Update[T any](r *Resource[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		id := c.Params("id")

		record, err := r.Repo.FindByID(ctx, id)
		if err != nil {
			return storeError(err)
		}

		// loaded separately so decoding into record cannot alias its slices
		var before *T
		if r.OnWrite != nil {
			if before, err = r.Repo.FindByID(ctx, id); err != nil {
				return storeError(err)
			}
		}

		if err := decodeBody(c.Body(), r.updatable(), record); err != nil {
			return err
		}

		if r.Prepare != nil {
			if err := r.Prepare(c, OpUpdate, record); err != nil {
				return err
			}
		}
		if err := validation.Struct(record); err != nil {
			return err
		}

		if err := r.Repo.UpdateByID(ctx, id, record); err != nil {
			return storeError(err)
		}

		after, err := r.Repo.FindByID(ctx, id)
		if err != nil {
			return storeError(err)
		}

		if r.OnWrite != nil {
			r.OnWrite(OpUpdate, before, after)
		}
		return response.Success(c, fiber.Map{"data": after})
	}
}

// Delete removes a record and responds without a body
func Delete[T any](r *Resource[T]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deleted, err := r.Repo.DeleteByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return storeError(err)
		}

		if r.OnWrite != nil {
			r.OnWrite(OpDelete, deleted, nil)
		}
		return response.NoContent(c)
	}
}

// queryParams collects every query argument, keeping repeated keys
func queryParams(c *fiber.Ctx) query.Params {
	params := make(query.Params)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		params[k] = append(params[k], string(value))
	})
	return params
}

// decodeBody copies the allowed keys of a JSON object body onto record.
// Keys outside allowed are ignored.
func decodeBody(body []byte, allowed []string, record interface{}) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return domain.ErrInvalidBody
	}

	keep := make(map[string]json.RawMessage, len(allowed))
	for _, key := range allowed {
		if v, ok := fields[key]; ok {
			keep[key] = v
		}
	}
	if len(keep) == 0 {
		return nil
	}

	filtered, err := json.Marshal(keep)
	if err != nil {
		return domain.NewInternal("body re-encoding failed", err)
	}

	if err := json.Unmarshal(filtered, record); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			msg := "Invalid value for " + typeErr.Field
			return domain.NewValidation("Invalid input data. "+msg,
				domain.FieldError{Field: typeErr.Field, Message: msg})
		}
		return domain.NewValidation("Invalid input data. " + err.Error())
	}
	return nil
}

// storeError maps repository failures onto the error taxonomy
func storeError(err error) error {
	var appErr *domain.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNoDocument
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrDuplicateValue
	default:
		return domain.NewInternal("storage operation failed", err)
	}
}
