package character

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `[
	{
		"id": "luna-luciernaga",
		"nombre": "Luna",
		"estado": "activo",
		"rasgos_distintivos": {"cabello": "luz dorada", "edad_aparente": "5 años"},
		"personalidad_narrativa": {"arquetipos": ["exploradora"], "motivaciones": ["descubrir"]},
		"reglas_ilustracion": {"prompt_base_ia": "luciérnaga luminosa estilo acuarela"},
		"metadata": {"total_apariciones": 12}
	},
	{
		"id": "bruno-oso",
		"nombre": "Bruno",
		"estado": "activo"
	}
]`

func writeRegistry(t *testing.T, content string) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "characters.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewService(path)
}

func TestAll_LoadsRegistry(t *testing.T) {
	svc := writeRegistry(t, sampleRegistry)

	chars, err := svc.All()
	require.NoError(t, err)
	require.Len(t, chars, 2)
	assert.Equal(t, "Luna", chars[0].Name)
	assert.Equal(t, "luz dorada", chars[0].Traits.Hair)
	assert.Equal(t, []string{"exploradora"}, chars[0].Personality.Archetypes)
	assert.Equal(t, 12, chars[0].Metadata.TotalAppearances)
	assert.True(t, svc.Loaded())
}

func TestByID_ExactMatchOnly(t *testing.T) {
	svc := writeRegistry(t, sampleRegistry)

	c, err := svc.ByID("bruno-oso")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Bruno", c.Name)

	c, err = svc.ByID("Bruno-Oso")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestByName_CaseInsensitive(t *testing.T) {
	svc := writeRegistry(t, sampleRegistry)

	c, err := svc.ByName("LUNA")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "luna-luciernaga", c.ID)

	c, err = svc.ByName("desconocido")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestMissingFileIsEmptyRegistry(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "missing.json"))

	chars, err := svc.All()
	require.NoError(t, err)
	assert.Empty(t, chars)
	assert.False(t, svc.Loaded())
}

func TestMalformedFileIsAnError(t *testing.T) {
	svc := writeRegistry(t, "{not json")

	_, err := svc.All()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse characters file")
}

func TestRefresh_RereadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "characters.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "a", "nombre": "A", "estado": "activo"}]`), 0o644))

	svc := NewService(path)
	chars, err := svc.All()
	require.NoError(t, err)
	require.Len(t, chars, 1)

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
	svc.Refresh()

	chars, err = svc.All()
	require.NoError(t, err)
	assert.Empty(t, chars)
}
