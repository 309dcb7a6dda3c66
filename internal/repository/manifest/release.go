package manifest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/domain/versions"
	"github.com/oshokin/umu-scout/internal/version"
)

// Fetcher downloads small documents such as release assets.
type Fetcher interface {
	Bytes(ctx context.Context, rawURL string) ([]byte, error)
}

// ErrAssetNotFound is returned when the latest release lacks the manifest asset.
var ErrAssetNotFound = errors.New("release asset not found")

// ReleaseRepository reads the manifest attached to the latest GitHub release.
type ReleaseRepository struct {
	client  *gh.Client
	fetcher Fetcher
	owner   string
	repo    string
	asset   string
}

// NewReleaseRepository builds a repository for cfg.Repository. httpClient may be
// nil, in which case http.DefaultClient is used for API calls.
func NewReleaseRepository(cfg *config.Config, httpClient *http.Client, fetcher Fetcher) (*ReleaseRepository, error) {
	owner, repo, err := cfg.Owner()
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(httpClient)
	if cfg.GitHubToken != "" {
		client = client.WithAuthToken(cfg.GitHubToken)
	}

	client.UserAgent = version.UserAgent()

	if cfg.GitHubAPIURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.GitHubAPIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}

		client.BaseURL = base
	}

	return &ReleaseRepository{
		client:  client,
		fetcher: fetcher,
		owner:   owner,
		repo:    repo,
		asset:   cfg.ManifestFilename(),
	}, nil
}

// Describe returns the latest-release page of the repository.
func (r *ReleaseRepository) Describe() string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/latest", r.owner, r.repo)
}

// Load finds the manifest asset in the latest release and decodes it.
func (r *ReleaseRepository) Load(ctx context.Context) (*versions.Record, error) {
	release, response, err := r.client.Repositories.GetLatestRelease(ctx, r.owner, r.repo)
	if err != nil {
		if response != nil && response.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("latest release of %s/%s: %w", r.owner, r.repo, ErrNotFound)
		}

		return nil, fmt.Errorf("get latest release: %w", err)
	}

	for _, asset := range release.Assets {
		if asset.GetName() != r.asset {
			continue
		}

		data, err := r.fetcher.Bytes(ctx, asset.GetBrowserDownloadURL())
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", r.asset, err)
		}

		return Decode(data)
	}

	return nil, fmt.Errorf("%s in %s (%s): %w", r.asset, release.GetTagName(), r.Describe(), ErrAssetNotFound)
}
