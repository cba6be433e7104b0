package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("ops@greenfarm.io"))
	assert.False(t, IsValidEmail("ops@greenfarm"))
	assert.False(t, IsValidEmail("ops greenfarm.io"))
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("harvest#2024"))
	assert.False(t, IsValidPassword("short1!"))
	assert.False(t, IsValidPassword("nodigits!!"))
	assert.False(t, IsValidPassword("nospecial123"))
}

func TestIsValidUsername(t *testing.T) {
	assert.True(t, IsValidUsername("grower_01"))
	assert.False(t, IsValidUsername(""))
	assert.False(t, IsValidUsername("has space"))
}

func TestFieldErrors_Err(t *testing.T) {
	fe := FieldErrors{}
	assert.NoError(t, fe.Err())

	fe.Add("weight", "Weight must be positive.")
	fe.Add("unit_type", "\"BOX\" is not a valid choice.")
	err := fe.Err()
	require.Error(t, err)

	var got FieldErrors
	require.True(t, errors.As(err, &got))
	assert.True(t, got.Has("weight"))
	assert.Equal(t, `validation failed: unit_type: "BOX" is not a valid choice.; weight: Weight must be positive.`, err.Error())
}

func TestFromJSON(t *testing.T) {
	var body struct {
		Name   *string `json:"name"`
		Active *bool   `json:"is_active"`
	}

	err := FromJSON(json.Unmarshal([]byte(`{"name":5}`), &body))
	var fe FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"Not a valid string."}, fe["name"])

	err = FromJSON(json.Unmarshal([]byte(`{"is_active":"yes"}`), &body))
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, []string{"Must be a valid boolean."}, fe["is_active"])

	err = FromJSON(json.Unmarshal([]byte(`{"name":`), &body))
	require.Error(t, err)
	assert.False(t, errors.As(err, &fe))
}
