package validate_test

import (
	"testing"

	"github.com/ardanlabs/statecore/foundation/validate"
	"github.com/stretchr/testify/require"
)

type model struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

func TestCheck(t *testing.T) {
	require.NoError(t, validate.Check(model{Name: "bill", Count: 1}))

	err := validate.Check(model{})
	require.Error(t, err)
	require.True(t, validate.IsFieldErrors(err))

	fields := validate.GetFieldErrors(err).Fields()
	require.Contains(t, fields, "name")
	require.Contains(t, fields, "count")
}
