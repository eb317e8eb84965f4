package check

import (
	"testing"
	"time"

	"github.com/LavaJover/shvark-market-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	d, err := Amount("price", "10.50", false)
	require.NoError(t, err)
	assert.Equal(t, "10.5", d.String())

	_, err = Amount("price", "0", false)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = Amount("cost", "0", true)
	assert.NoError(t, err)
	_, err = Amount("price", "-1", true)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = Amount("price", "1e", true)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestLimit(t *testing.T) {
	n, err := Limit(0, 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	n, err = Limit(500, 50, 200)
	require.NoError(t, err)
	assert.Equal(t, 200, n)
	_, err = Limit(-1, 50, 200)
	assert.Error(t, err)
}

func TestActor(t *testing.T) {
	_, err := Actor("  ")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	a, err := Actor(" 0xAb ")
	require.NoError(t, err)
	assert.Equal(t, "0xAb", a)
}

func TestTagsAndWindow(t *testing.T) {
	assert.NoError(t, Tags("tags", []string{"a", "b"}, 12, 32))
	assert.Error(t, Tags("tags", []string{"a", "a"}, 12, 32))
	now := time.Now()
	earlier := now.Add(-time.Hour)
	assert.Error(t, Window(&now, &earlier))
	assert.NoError(t, Window(&earlier, &now))
}
