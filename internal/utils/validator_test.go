package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
)

type sampleInput struct {
	Title    string   `json:"title" validate:"required,min=3,max=10"`
	Rating   int      `json:"rating" validate:"min=1,max=5"`
	Kind     string   `json:"kind" validate:"oneof=a b"`
	Tags     []string `json:"tags" validate:"max=2"`
	Internal string   `json:"-" validate:"max=1"`
}

func TestValidate(t *testing.T) {
	err := Validate(sampleInput{Title: "ok title", Rating: 3, Kind: "a"})
	assert.NoError(t, err)

	err = Validate(sampleInput{Title: "x", Rating: 9, Kind: "c", Tags: []string{"1", "2", "3"}, Internal: "long"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	msg := err.Error()
	assert.Contains(t, msg, "Поле title должно содержать не менее 3 символов")
	assert.Contains(t, msg, "Поле rating должно быть не больше 5")
	assert.Contains(t, msg, "Поле kind должно быть одним из: a b")
	assert.Contains(t, msg, "Поле tags должно содержать не более 2 элементов")
	assert.Contains(t, msg, "Поле Internal должно содержать не более 1 символов")
}

func TestValidate_Required(t *testing.T) {
	err := Validate(sampleInput{Rating: 1, Kind: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Поле title обязательно")
}
