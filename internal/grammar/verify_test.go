package grammar

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, baseDir, relPath string, content []byte) string {
	t.Helper()
	fullPath := filepath.Join(baseDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, content, 0o644))
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

func TestVerifyArtifacts_AllClean(t *testing.T) {
	baseDir := t.TempDir()
	soHash := writeArtifact(t, baseDir, "simplex/simplex.so", []byte("shared object bytes"))
	ntHash := writeArtifact(t, baseDir, "simplex/node-types.json", []byte(`[]`))

	manifest := Manifest{
		Version:            1,
		AllowedABIVersions: []int{15},
		Artifacts: []Artifact{{
			Language:         "simplex",
			ABIVersion:       15,
			SharedObjectPath: "simplex/simplex.so",
			SharedObjectHash: soHash,
			NodeTypesPath:    "simplex/node-types.json",
			NodeTypesHash:    ntHash,
		}},
	}

	issues, err := VerifyArtifacts(baseDir, manifest)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestVerifyArtifacts_ReportsChecksumMismatch(t *testing.T) {
	baseDir := t.TempDir()
	writeArtifact(t, baseDir, "simplex/simplex.so", []byte("actual bytes"))
	ntHash := writeArtifact(t, baseDir, "simplex/node-types.json", []byte(`[]`))

	manifest := Manifest{
		Version:            1,
		AllowedABIVersions: []int{15},
		Artifacts: []Artifact{{
			Language:         "simplex",
			ABIVersion:       15,
			SharedObjectPath: "simplex/simplex.so",
			SharedObjectHash: "deadbeef",
			NodeTypesPath:    "simplex/node-types.json",
			NodeTypesHash:    ntHash,
		}},
	}

	issues, err := VerifyArtifacts(baseDir, manifest)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "checksum mismatch", issues[0].Reason)
	assert.Equal(t, "shared-object", issues[0].ArtifactKind)
}

func TestVerifyArtifacts_ReportsMissingArtifactAndBadABI(t *testing.T) {
	baseDir := t.TempDir()
	ntHash := writeArtifact(t, baseDir, "simplex/node-types.json", []byte(`[]`))

	manifest := Manifest{
		Version:            1,
		AllowedABIVersions: []int{15},
		Artifacts: []Artifact{{
			Language:         "simplex",
			ABIVersion:       11,
			SharedObjectPath: "simplex/simplex.so",
			SharedObjectHash: "deadbeef",
			NodeTypesPath:    "simplex/node-types.json",
			NodeTypesHash:    ntHash,
		}},
	}

	issues, err := VerifyArtifacts(baseDir, manifest)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	reasons := []string{issues[0].Reason, issues[1].Reason}
	assert.Contains(t, reasons, "artifact missing or unreadable")
	assert.Contains(t, reasons, "unsupported ABI version 11")
}

func TestVerifyRegistryArtifacts_FlagsMissingRequiredGrammar(t *testing.T) {
	baseDir := t.TempDir()
	soHash := writeArtifact(t, baseDir, "other/other.so", []byte("so"))
	ntHash := writeArtifact(t, baseDir, "other/node-types.json", []byte(`[]`))
	manifestBody := fmt.Sprintf(`
version = 1
allowed_abi_versions = [15]

[[artifacts]]
language = "other"
abi_version = 15
so_path = "other/other.so"
so_sha256 = %q
node_types_path = "other/node-types.json"
node_types_sha256 = %q
`, soHash, ntHash)
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "manifest.toml"), []byte(manifestBody), 0o644))

	registry := map[string]LanguageSpec{
		"dynamo": {
			Name:                "dynamo",
			Enabled:             true,
			Static:              false,
			RequireVerification: true,
		},
	}

	issues, err := VerifyRegistryArtifacts(baseDir, registry)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "dynamo", issues[0].Language)
	assert.Equal(t, "language missing from manifest", issues[0].Reason)
}

func TestCalculateSHA256(t *testing.T) {
	baseDir := t.TempDir()
	want := writeArtifact(t, baseDir, "blob", []byte("content"))

	got, err := CalculateSHA256(filepath.Join(baseDir, "blob"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
