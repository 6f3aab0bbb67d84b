package validation

import (
	"testing"

	"github.com/smallbiznis/workbook/pkg/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	Start civil.Date `json:"start_date" validate:"required,civildate"`
	Order string     `json:"order" validate:"omitempty,oneof=asc desc"`
	Limit int        `json:"limit" validate:"gte=0,lte=1000"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(request{Order: "up", Limit: -1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, "required", fields["start_date"])
	assert.Equal(t, "oneof", fields["order"])
	assert.Equal(t, "gte", fields["limit"])
}

func TestStructRejectsMalformedDate(t *testing.T) {
	err := Struct(request{Start: civil.Date("2024-13-40")})
	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, "civildate", fields["start_date"])

	assert.NoError(t, Struct(request{Start: civil.Date("2024-01-31"), Order: "desc"}))
}
