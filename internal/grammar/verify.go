package grammar

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type VerificationIssue struct {
	Language     string
	ArtifactKind string
	ArtifactPath string
	ExpectedHash string
	ActualHash   string
	Reason       string
}

// VerifyArtifacts recomputes the checksum of every artifact listed in the
// manifest and reports anything that does not match, sorted for stable
// output.
func VerifyArtifacts(baseDir string, manifest Manifest) ([]VerificationIssue, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("baseDir must not be empty")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("grammar base path is not a directory: %s", baseDir)
	}

	allowed := make(map[int]bool, len(manifest.AllowedABIVersions))
	for _, version := range manifest.AllowedABIVersions {
		allowed[version] = true
	}

	issues := make([]VerificationIssue, 0)
	for _, artifact := range manifest.Artifacts {
		if !allowed[artifact.ABIVersion] {
			issues = append(issues, VerificationIssue{
				Language: artifact.Language,
				Reason:   fmt.Sprintf("unsupported ABI version %d", artifact.ABIVersion),
			})
		}
		issues = append(issues, verifyArtifactHash(baseDir, artifact.Language, "shared-object", artifact.SharedObjectPath, artifact.SharedObjectHash)...)
		issues = append(issues, verifyArtifactHash(baseDir, artifact.Language, "node-types", artifact.NodeTypesPath, artifact.NodeTypesHash)...)
	}

	sortIssues(issues)
	return issues, nil
}

// VerifyRegistryArtifacts checks the manifest against the enabled dynamic
// grammars of a registry: every enabled grammar that requires verification
// must appear in the manifest and its artifacts must match their checksums.
func VerifyRegistryArtifacts(baseDir string, registry map[string]LanguageSpec) ([]VerificationIssue, error) {
	manifestPath := filepath.Join(baseDir, "manifest.toml")
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	enabled := make(map[string]bool)
	requiredVerification := make(map[string]bool)
	for language, spec := range registry {
		if !spec.Enabled || spec.Static {
			continue
		}
		enabled[language] = true
		if spec.RequireVerification {
			requiredVerification[language] = true
		}
	}

	manifestLanguages := make(map[string]bool, len(manifest.Artifacts))
	for _, artifact := range manifest.Artifacts {
		manifestLanguages[artifact.Language] = true
	}

	issues, err := VerifyArtifacts(baseDir, manifest)
	if err != nil {
		return nil, err
	}

	filtered := make([]VerificationIssue, 0)
	for _, issue := range issues {
		if enabled[issue.Language] {
			filtered = append(filtered, issue)
		}
	}

	for language := range requiredVerification {
		if !manifestLanguages[language] {
			filtered = append(filtered, VerificationIssue{
				Language: language,
				Reason:   "language missing from manifest",
			})
		}
	}

	sortIssues(filtered)
	return filtered, nil
}

func sortIssues(issues []VerificationIssue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Language != issues[j].Language {
			return issues[i].Language < issues[j].Language
		}
		if issues[i].ArtifactKind != issues[j].ArtifactKind {
			return issues[i].ArtifactKind < issues[j].ArtifactKind
		}
		if issues[i].ArtifactPath != issues[j].ArtifactPath {
			return issues[i].ArtifactPath < issues[j].ArtifactPath
		}
		return issues[i].Reason < issues[j].Reason
	})
}

func verifyArtifactHash(baseDir, language, kind, relPath, expectedHash string) []VerificationIssue {
	fullPath := filepath.Join(baseDir, relPath)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return []VerificationIssue{{
			Language:     language,
			ArtifactKind: kind,
			ArtifactPath: relPath,
			ExpectedHash: expectedHash,
			ActualHash:   "<missing>",
			Reason:       "artifact missing or unreadable",
		}}
	}

	actual := fmt.Sprintf("%x", sha256.Sum256(data))
	if actual == expectedHash {
		return nil
	}
	return []VerificationIssue{{
		Language:     language,
		ArtifactKind: kind,
		ArtifactPath: relPath,
		ExpectedHash: expectedHash,
		ActualHash:   actual,
		Reason:       "checksum mismatch",
	}}
}

// CalculateSHA256 returns the hex checksum of a file, used when recording
// freshly installed grammar artifacts into the manifest.
func CalculateSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
