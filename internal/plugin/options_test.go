package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts := Options{
		"branch":   "met",
		"min":      20,
		"max":      150.5,
		"colorize": true,
		"branches": []interface{}{"met", "ht"},
		"single":   "njets",
		"bad_list": []interface{}{"met", 3},
	}

	t.Run("Strings fall back to the default", func(t *testing.T) {
		s, err := opts.String("branch", "ht")
		require.NoError(t, err)
		assert.Equal(t, "met", s)

		s, err = opts.String("source", "Reader")
		require.NoError(t, err)
		assert.Equal(t, "Reader", s)

		_, err = opts.String("min", "")
		assert.Error(t, err)
	})

	t.Run("Required strings must be set", func(t *testing.T) {
		_, err := opts.RequiredString("path")
		assert.ErrorContains(t, err, `"path" is required`)
	})

	t.Run("Numbers accept integers and floats", func(t *testing.T) {
		f, err := opts.Float("min", 0)
		require.NoError(t, err)
		assert.Equal(t, 20.0, f)

		f, err = opts.Float("max", 0)
		require.NoError(t, err)
		assert.Equal(t, 150.5, f)

		_, err = opts.Float("branch", 0)
		assert.Error(t, err)
	})

	t.Run("Integers reject fractions", func(t *testing.T) {
		n, err := opts.Int("min", 0)
		require.NoError(t, err)
		assert.Equal(t, 20, n)

		_, err = opts.Int("max", 0)
		assert.Error(t, err)

		n, err = opts.Int("position", 7)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("Booleans are typed", func(t *testing.T) {
		b, err := opts.Bool("colorize", false)
		require.NoError(t, err)
		assert.True(t, b)

		_, err = opts.Bool("branch", false)
		assert.Error(t, err)
	})

	t.Run("String lists accept a single string", func(t *testing.T) {
		list, err := opts.Strings("branches")
		require.NoError(t, err)
		assert.Equal(t, []string{"met", "ht"}, list)

		list, err = opts.Strings("single")
		require.NoError(t, err)
		assert.Equal(t, []string{"njets"}, list)

		list, err = opts.Strings("missing")
		require.NoError(t, err)
		assert.Nil(t, list)

		_, err = opts.Strings("bad_list")
		assert.Error(t, err)
	})

	t.Run("Check rejects unknown keys", func(t *testing.T) {
		assert.NoError(t, Options{"branch": "met"}.Check("branch", "min"))
		assert.ErrorContains(t, Options{"brnach": "met"}.Check("branch"), `"brnach"`)
	})
}
