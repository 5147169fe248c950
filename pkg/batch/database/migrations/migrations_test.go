package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDialect(t *testing.T) {
	for _, dialect := range []string{"postgres", "redshift", "MySQL", "sqlite"} {
		fsys, ok := ForDialect(dialect)
		require.True(t, ok, dialect)
		entries, err := fs.ReadDir(fsys, ".")
		require.NoError(t, err)
		assert.Len(t, entries, 2, dialect)
	}

	_, ok := ForDialect("snowflake")
	assert.False(t, ok)
}
