package packager

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oshokin/umu-scout/internal/domain/versions"
	"github.com/oshokin/umu-scout/internal/logger"
	"github.com/oshokin/umu-scout/internal/repository/manifest"
)

// resolve loads the prior record and fetches the current one.
func (p *packager) resolve(ctx context.Context) (*versions.Record, *versions.Record, error) {
	prior, err := p.loadPrior(ctx)
	if err != nil {
		return nil, nil, err
	}

	current, err := p.fetchCurrent(ctx)
	if err != nil {
		return nil, nil, err
	}

	return prior, current, nil
}

// fetchCurrent asks every version endpoint for its current version and stamps the build tag.
func (p *packager) fetchCurrent(ctx context.Context) (*versions.Record, error) {
	current := versions.NewRecord()

	for _, component := range p.cfg.Components {
		logger.DebugKV(ctx, "Fetching current version", "component", component.Name, "url", component.VersionURL)

		version, err := p.client.Text(ctx, component.VersionURL)
		if err != nil {
			return nil, fmt.Errorf("fetch %s version: %w", component.Name, err)
		}

		current.Set(component.Name, version)
	}

	current.Tag = versions.NewTag(p.now())

	return current, nil
}

// loadPrior applies the prior-record policy of the selected mode.
func (p *packager) loadPrior(ctx context.Context) (*versions.Record, error) {
	switch p.opts.Prior {
	case PriorRelease:
		source, err := p.releaseSource()
		if err != nil {
			logger.Warnf(ctx, "Could not look up the latest release: %v", err)
			logger.Info(ctx, "Downloading latest")

			return nil, nil
		}

		prior, err := source.Load(ctx)
		if err != nil {
			logger.Warnf(ctx, "Could not read old versions from %s: %v", source.Describe(), err)
			logger.Info(ctx, "Downloading latest")

			return nil, nil
		}

		return prior, nil
	case PriorPath:
		source := manifest.NewFileRepository(p.opts.ManifestPath)

		prior, err := source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", source.Describe(), ErrPriorManifest, err)
		}

		return prior, nil
	default:
		logger.Info(ctx, "Downloading latest")

		return nil, nil
	}
}

// releaseSource builds the GitHub latest-release source.
func (p *packager) releaseSource() (manifest.Source, error) {
	httpClient := p.opts.GitHubHTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: p.cfg.Timeout}

		// The safeurl client does not expose its transport; API calls then use the default one.
		if shared, ok := p.client.Doer().(*http.Client); ok {
			httpClient.Transport = shared.Transport
		}
	}

	return manifest.NewReleaseRepository(p.cfg, httpClient, p.client)
}
