package geo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGeometry(t *testing.T) {
	t.Parallel()

	point := `{"type":"Point","coordinates":[151.2,-33.8]}`

	got, err := readGeometry(strings.NewReader(point), "-")
	require.NoError(t, err)
	assert.JSONEq(t, point, string(got))

	path := filepath.Join(t.TempDir(), "site.geojson")
	require.NoError(t, os.WriteFile(path, []byte(point), 0o600))
	got, err = readGeometry(nil, path)
	require.NoError(t, err)
	assert.JSONEq(t, point, string(got))

	_, err = readGeometry(strings.NewReader("{"), "-")
	assert.Error(t, err)

	_, err = readGeometry(nil, filepath.Join(t.TempDir(), "missing.geojson"))
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
