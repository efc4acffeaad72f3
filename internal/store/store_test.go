package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAndDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	require.NoError(t, s.Set("k", []byte("v1")))
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set("k", []byte("v2")))
	got, _ = s.Get("k")
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, s.Delete("k"))
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("k", []byte("durable")))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, ok := s2.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("durable"), got)
}

func TestMemoryOnlyMode(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("ephemeral")))
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("ephemeral"), got)
	require.NoError(t, s.Delete("k"))
	_, ok = s.Get("k")
	assert.False(t, ok)
}
