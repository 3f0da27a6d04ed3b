package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPageSize(t *testing.T) {
	assert.True(t, IsValidPageSize(10))
	assert.True(t, IsValidPageSize(25))
	assert.True(t, IsValidPageSize(50))
	assert.True(t, IsValidPageSize(100))
	assert.False(t, IsValidPageSize(33))
	assert.False(t, IsValidPageSize(0))
}

func TestCalculateTotalPages(t *testing.T) {
	assert.Equal(t, 0, CalculateTotalPages(0, 50))
	assert.Equal(t, 0, CalculateTotalPages(100, 0))
	assert.Equal(t, 2, CalculateTotalPages(100, 50))
	assert.Equal(t, 3, CalculateTotalPages(101, 50))
	assert.Equal(t, 1, CalculateTotalPages(1, 50))
}
