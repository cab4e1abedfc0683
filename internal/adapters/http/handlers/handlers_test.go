package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours-api/internal/adapters/persistence/models"
	"natours-api/internal/core/domain"
)

func TestDecodeBodyKeepsOnlyAllowedKeys(t *testing.T) {
	review := &models.Review{Rating: 2}

	err := decodeBody([]byte(`{"review":"Great","rating":5,"userId":"someone-else","id":"forged"}`),
		[]string{"review", "rating"}, review)
	require.NoError(t, err)

	assert.Equal(t, "Great", review.Review)
	assert.Equal(t, 5.0, review.Rating)
	assert.Empty(t, review.UserID)
	assert.Empty(t, review.ID)
}

func TestDecodeBodyEmpty(t *testing.T) {
	review := &models.Review{Rating: 2}

	require.NoError(t, decodeBody(nil, []string{"rating"}, review))
	require.NoError(t, decodeBody([]byte("  "), []string{"rating"}, review))
	require.NoError(t, decodeBody([]byte(`{"other":1}`), []string{"rating"}, review))
	assert.Equal(t, 2.0, review.Rating)
}

func TestDecodeBodyErrors(t *testing.T) {
	review := &models.Review{}

	err := decodeBody([]byte(`{"rating":`), []string{"rating"}, review)
	assert.ErrorIs(t, err, domain.ErrInvalidBody)

	err = decodeBody([]byte(`[1,2]`), []string{"rating"}, review)
	assert.ErrorIs(t, err, domain.ErrInvalidBody)

	err = decodeBody([]byte(`{"rating":"five"}`), []string{"rating"}, review)
	var appErr *domain.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domain.KindValidation, appErr.Kind)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "rating", appErr.Fields[0].Field)
}

func TestStoreError(t *testing.T) {
	assert.ErrorIs(t, storeError(gorm.ErrRecordNotFound), domain.ErrNoDocument)
	assert.ErrorIs(t, storeError(gorm.ErrDuplicatedKey), domain.ErrDuplicateValue)
	assert.ErrorIs(t, storeError(domain.ErrTourNotFound), domain.ErrTourNotFound)

	var appErr *domain.AppError
	require.True(t, errors.As(storeError(errors.New("disk full")), &appErr))
	assert.Equal(t, domain.KindInternal, appErr.Kind)
	assert.False(t, appErr.Operational)
}

func TestParseLatLng(t *testing.T) {
	lat, lng, err := parseLatLng("34.111745, -118.113491")
	require.NoError(t, err)
	assert.Equal(t, 34.111745, lat)
	assert.Equal(t, -118.113491, lng)

	for _, raw := range []string{"", "34.1", "a,b", "1,2,3", "NaN,NaN", "Inf,0", "0,-Inf"} {
		_, _, err := parseLatLng(raw)
		assert.ErrorIs(t, err, errBadLatLng, raw)
	}
}

func TestParseFiniteRejectsNaNAndInf(t *testing.T) {
	v, err := parseFinite(" 250 ")
	require.NoError(t, err)
	assert.Equal(t, 250.0, v)

	for _, raw := range []string{"NaN", "nan", "Inf", "+Inf", "-Infinity"} {
		_, err := parseFinite(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseUnit(t *testing.T) {
	unit, err := parseUnit("mi")
	require.NoError(t, err)
	assert.Equal(t, domain.UnitMiles, unit)

	_, err = parseUnit("furlong")
	assert.Error(t, err)
}
