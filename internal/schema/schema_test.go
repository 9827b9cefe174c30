package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `validate:"required"`
	Level string `validate:"omitempty,oneof=low high"`
	Count int    `validate:"gte=0,lte=10"`
}

type doc struct {
	Items []item `validate:"dive"`
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(doc{Items: []item{{Name: "a", Level: "low", Count: 3}}}))
}

func TestStructFlattensAllFieldErrors(t *testing.T) {
	err := Struct(doc{Items: []item{
		{Level: "medium"},
		{Name: "b", Count: 11},
	}})
	require.Error(t, err)
	assert.Equal(t,
		"Items[0].Name: field is required; Items[0].Level: must be one of [low high], got medium; Items[1].Count: must not exceed 10",
		err.Error())
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "Rules.Custom[0].ID", fieldPath("Settings.Rules.Custom[0].ID"))
	assert.Equal(t, "Plain", fieldPath("Plain"))
}
