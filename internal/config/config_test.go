package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDefault_IsValid ensures the built-in pipeline settings pass validation.
func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.NoError(t, Validate(cfg))
	require.Equal(t, []string{"app1070560", "steam-runtime"}, cfg.ComponentNames())
	require.Equal(t, "umu-scout.tar.xz", cfg.ArchiveFilename())
	require.Equal(t, "umu-scout.sha512sum", cfg.ChecksumFilename())
	require.Equal(t, "umu-scout.version.json", cfg.ManifestFilename())

	owner, name, err := cfg.Owner()
	require.NoError(t, err)
	require.Equal(t, "Open-Wine-Components", owner)
	require.Equal(t, "umu-scout", name)
}

// TestValidate checks required fields and cross-field validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	cases := map[string]func(*Config){
		"no components":       func(c *Config) { c.Components = nil },
		"bad version url":     func(c *Config) { c.Components[0].VersionURL = "not a url" },
		"duplicate component": func(c *Config) { c.Components[1].Name = c.Components[0].Name },
		"escaping subdir":     func(c *Config) { c.Components[1].Subdir = "../outside" },
		"absolute subdir":     func(c *Config) { c.Components[1].Subdir = "/tmp" },
		"bad repository":      func(c *Config) { c.Repository = "umu-scout" },
		"nested repository":   func(c *Config) { c.Repository = "a/b/c" },
		"package with slash":  func(c *Config) { c.PackageName = "umu/scout" },
		"empty merge dir":     func(c *Config) { c.MergeDir = "" },
		"mirror no bucket":    func(c *Config) { c.Mirror = MirrorConfig{Enabled: true, Region: "eu-west-1"} },
		"bad auxiliary":       func(c *Config) { c.Components[1].Auxiliary = []string{"::"} },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.Error(t, Validate(cfg), name)
	}

	// Timeout default is filled in.
	cfg := Default()
	cfg.Timeout = 0
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultTimeout, cfg.Timeout)
}

// TestLoad_OverlaysDefaults reads a partial YAML file and keeps untouched defaults.
func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "umu-scout.yaml")

	t.Setenv(RepositoryEnv, "")
	t.Setenv(TokenEnv, "")

	require.NoError(t, os.WriteFile(path, []byte("output_dir: out\ntimeout: 30s\nchecksum: false\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "out", cfg.OutputDir)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.False(t, cfg.Checksum)
	require.Equal(t, DefaultPackageName, cfg.PackageName)
	require.Len(t, cfg.Components, 2)
}

// TestLoad_EnvironmentOverrides ensures UMU_SCOUT_REPO and GITHUB_TOKEN win over defaults.
func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(RepositoryEnv, "someone/umu-scout-fork")
	t.Setenv(TokenEnv, "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "someone/umu-scout-fork", cfg.Repository)
	require.Equal(t, "secret", cfg.GitHubToken)
}

// TestLoad_Errors covers a missing file and malformed YAML.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("components: {"), 0o600))

	_, err = Load(bad)
	require.Error(t, err)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Setenv(RepositoryEnv, "")
	t.Setenv(TokenEnv, "")

	path := filepath.Join(t.TempDir(), "settings.yaml")

	settings := Default()
	settings.OutputDir = "release"
	settings.GitHubToken = "not-persisted"
	settings.Mirror = MirrorConfig{
		Enabled: true,
		Bucket:  "umu",
		Region:  "eu-central-1",
		Prefix:  "scout/",
	}

	require.NoError(t, Save(path, settings))
	require.Error(t, Save(path, nil))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.OutputDir, loaded.OutputDir)
	require.Equal(t, settings.Components, loaded.Components)
	require.Equal(t, settings.Mirror, loaded.Mirror)
	require.Empty(t, loaded.GitHubToken)
}

// TestAuxiliaryFilename derives file names from URLs.
func TestAuxiliaryFilename(t *testing.T) {
	t.Parallel()

	require.Equal(t, "steam-runtime.tar.xz.checksum",
		AuxiliaryFilename("https://repo.steampowered.com/steamrt1/images/latest-public-beta/steam-runtime.tar.xz.checksum"))
	require.Equal(t, "file.txt", AuxiliaryFilename("http://127.0.0.1:8080/dir/file.txt?token=1"))
}
