package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds everything the packager needs to resolve, assemble and publish a build.
type Config struct {
	// PackageName names the merged directory and every published artifact.
	PackageName string `yaml:"package_name" validate:"required"`
	// OutputDir is the workspace recreated on every build.
	OutputDir string `yaml:"output_dir" validate:"required"`
	// MergeDir is the extracted directory renamed to PackageName.
	MergeDir string `yaml:"merge_dir" validate:"required"`
	// Repository is the GitHub "owner/name" whose latest release holds the prior manifest.
	Repository string `yaml:"repository" validate:"required"`
	// GitHubAPIURL overrides the GitHub REST API base URL.
	GitHubAPIURL string `yaml:"github_api_url" validate:"omitempty,url"`
	// GitHubToken authenticates release lookups. It is never persisted.
	GitHubToken string `yaml:"-"`
	// Components are extracted in order: the first one into the workspace root.
	Components []Component `yaml:"components" validate:"min=1,dive"`
	// Timeout bounds every single network call.
	Timeout time.Duration `yaml:"timeout"`
	// Checksum enables the checksum sidecar stage.
	Checksum bool `yaml:"checksum"`
	// SafeFetch routes upstream downloads through an SSRF-hardened client.
	SafeFetch bool `yaml:"safe_fetch"`
	// Mirror configures the optional S3 upload of published artifacts.
	Mirror MirrorConfig `yaml:"mirror"`
}

// Component is one externally hosted archive tracked by version string.
type Component struct {
	// Name identifies the component in the version manifest.
	Name string `yaml:"name" validate:"required"`
	// VersionURL returns the current version as plain text.
	VersionURL string `yaml:"version_url" validate:"required,url"`
	// ArchiveURL returns the compressed tar archive of the current version.
	ArchiveURL string `yaml:"archive_url" validate:"required,url"`
	// Subdir is where the archive is extracted, relative to the workspace root.
	Subdir string `yaml:"subdir,omitempty"`
	// Auxiliary files are downloaded next to the extracted archive.
	Auxiliary []string `yaml:"auxiliary,omitempty" validate:"dive,url"`
}

// MirrorConfig describes an S3-compatible bucket receiving published artifacts.
type MirrorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket" validate:"required_if=Enabled true"`
	Region          string `yaml:"region" validate:"required_if=Enabled true"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	Prefix          string `yaml:"prefix"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

const (
	// DefaultPackageName is the name of the published package.
	DefaultPackageName = "umu-scout"

	// DefaultConfigFilename is where the config subcommand writes the effective settings.
	DefaultConfigFilename = "umu-scout.yaml"

	// DefaultOutputDir is the workspace directory relative to the working directory.
	DefaultOutputDir = "dist"

	// DefaultMergeDir is the top-level directory of the pressure-vessel archive.
	DefaultMergeDir = "SteamLinuxRuntime"

	// DefaultRepository is where releases of the package are published.
	DefaultRepository = "Open-Wine-Components/" + DefaultPackageName

	// DefaultTimeout bounds a single network call, large archives included.
	DefaultTimeout = 10 * time.Minute

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o644

	// RepositoryEnv overrides Repository.
	RepositoryEnv = "UMU_SCOUT_REPO"

	// TokenEnv provides GitHubToken.
	TokenEnv = "GITHUB_TOKEN"

	pressureVesselBase = "https://repo.steampowered.com/pressure-vessel/snapshots/latest"
	scoutBase          = "https://repo.steampowered.com/steamrt1/images/latest-public-beta"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errDuplicateComponent is returned when two components share a name.
	errDuplicateComponent = errors.New("duplicate component name")
	// errInvalidRepository is returned when the repository is not "owner/name".
	errInvalidRepository = errors.New("repository must look like owner/name")
	// errInvalidSubdir is returned when a component subdirectory leaves the workspace.
	errInvalidSubdir = errors.New("component subdir must stay inside the workspace")
	// errInvalidName is returned when a file or directory name contains a path separator.
	errInvalidName = errors.New("name must not contain path separators")

	//nolint:gochecknoglobals // The validator caches struct metadata and is safe for concurrent use.
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Default returns the configuration of the umu-scout release pipeline.
func Default() *Config {
	return &Config{
		PackageName: DefaultPackageName,
		OutputDir:   DefaultOutputDir,
		MergeDir:    DefaultMergeDir,
		Repository:  DefaultRepository,
		Components: []Component{
			{
				Name:       "app1070560",
				VersionURL: pressureVesselBase + "/VERSION.txt",
				ArchiveURL: pressureVesselBase + "/app1070560/SteamLinuxRuntime.tar.xz",
			},
			{
				Name:       "steam-runtime",
				VersionURL: scoutBase + "/steam-runtime.version.txt",
				ArchiveURL: scoutBase + "/steam-runtime.tar.xz",
				Subdir:     DefaultMergeDir,
				Auxiliary:  []string{scoutBase + "/steam-runtime.tar.xz.checksum"},
			},
		},
		Timeout:  DefaultTimeout,
		Checksum: true,
	}
}

// Load reads a YAML file over the defaults, applies the environment and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}

		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() {
	if repo := strings.TrimSpace(os.Getenv(RepositoryEnv)); repo != "" {
		c.Repository = repo
	}

	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		c.GitHubToken = token
	}
}

// Validate checks required fields, fills defaults and runs cross-field checks.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if _, _, err := cfg.Owner(); err != nil {
		return err
	}

	for _, name := range []string{cfg.PackageName, cfg.MergeDir} {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("%q: %w", name, errInvalidName)
		}
	}

	seen := make(map[string]struct{}, len(cfg.Components))

	for _, component := range cfg.Components {
		if _, dup := seen[component.Name]; dup {
			return fmt.Errorf("%s: %w", component.Name, errDuplicateComponent)
		}

		seen[component.Name] = struct{}{}

		if component.Subdir != "" && !filepath.IsLocal(filepath.FromSlash(component.Subdir)) {
			return fmt.Errorf("%s: %w", component.Subdir, errInvalidSubdir)
		}
	}

	return nil
}

// Owner splits Repository into owner and name.
func (c *Config) Owner() (string, string, error) {
	owner, name, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%q: %w", c.Repository, errInvalidRepository)
	}

	return owner, name, nil
}

// ComponentNames returns the tracked component names in extraction order.
func (c *Config) ComponentNames() []string {
	names := make([]string, 0, len(c.Components))
	for _, component := range c.Components {
		names = append(names, component.Name)
	}

	return names
}

// ArchiveFilename is the name of the published archive.
func (c *Config) ArchiveFilename() string {
	return c.PackageName + ".tar.xz"
}

// ChecksumFilename is the name of the checksum sidecar.
func (c *Config) ChecksumFilename() string {
	return c.PackageName + ".sha512sum"
}

// ManifestFilename is the name of the version manifest, both on disk and as a release asset.
func (c *Config) ManifestFilename() string {
	return c.PackageName + ".version.json"
}

// AuxiliaryFilename derives the local name of an auxiliary file from its URL.
func AuxiliaryFilename(rawURL string) string {
	trimmed, _, _ := strings.Cut(rawURL, "?")

	return path.Base(trimmed)
}
