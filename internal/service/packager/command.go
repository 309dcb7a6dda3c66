package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/umu-scout/internal/config"
	"github.com/oshokin/umu-scout/internal/domain/versions"
	"github.com/oshokin/umu-scout/internal/logger"
	"github.com/oshokin/umu-scout/internal/service/common"
	"github.com/oshokin/umu-scout/internal/workspace"
)

// PriorMode selects where the previously published version record comes from.
type PriorMode int

const (
	// PriorNone ignores prior state and always rebuilds.
	PriorNone PriorMode = iota
	// PriorRelease reads the manifest asset of the latest GitHub release. Failures are not fatal.
	PriorRelease
	// PriorPath reads a local manifest file. Failures are fatal.
	PriorPath
)

// UpdateArgument is the positional argument selecting PriorRelease.
const UpdateArgument = "update"

// Options contains inputs for the packager entry point.
type Options struct {
	// Config describes components, endpoints and output names.
	Config *config.Config
	// Prior selects the source of the previously published record.
	Prior PriorMode
	// ManifestPath is the local manifest read when Prior is PriorPath.
	ManifestPath string
	// Stdout receives the build tag. Defaults to os.Stdout.
	Stdout io.Writer
	// Now returns the build time. Defaults to time.Now.
	Now func() time.Time
	// Client overrides the upstream HTTP client.
	Client *common.Client
	// GitHubHTTPClient overrides the HTTP client used for GitHub API calls.
	GitHubHTTPClient *http.Client
	// Uploader overrides the mirror uploader built from Config.Mirror.
	Uploader Uploader
}

// packager runs one resolve, decide, assemble and publish cycle.
// It is unexported; callers should use Run, which encapsulates setup and validation.
type packager struct {
	// cfg holds components and output settings.
	cfg *config.Config
	// opts keeps the caller-provided inputs.
	opts *Options
	// client fetches versions, archives and auxiliary files.
	client *common.Client
	// stdout receives the build tag.
	stdout io.Writer
	// now is the clock used for the build tag.
	now func() time.Time
}

var (
	// ErrPriorManifest is returned when an explicitly named manifest cannot be used.
	ErrPriorManifest = errors.New("cannot use prior manifest")
	// errOptionsNotSet is returned when Run is called without options.
	errOptionsNotSet = errors.New("options are not set")
)

// ParsePrior maps the optional positional argument onto a PriorMode and manifest path.
func ParsePrior(args []string) (PriorMode, string) {
	switch {
	case len(args) == 0 || args[0] == "":
		return PriorNone, ""
	case args[0] == UpdateArgument:
		return PriorRelease, ""
	default:
		return PriorPath, args[0]
	}
}

// Run executes the packaging workflow. It returns nil both after a successful
// build and when every component is already up to date.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "umu-scout")

	pkg, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	return pkg.Run(ctx)
}

// newPackager validates the options and fills defaults.
func newPackager(opts *Options) (*packager, error) {
	if opts == nil {
		return nil, errOptionsNotSet
	}

	if err := config.Validate(opts.Config); err != nil {
		return nil, err
	}

	pkg := &packager{
		cfg:    opts.Config,
		opts:   opts,
		client: opts.Client,
		stdout: opts.Stdout,
		now:    opts.Now,
	}

	if pkg.client == nil {
		pkg.client = common.FromConfig(opts.Config)
	}

	if pkg.stdout == nil {
		pkg.stdout = os.Stdout
	}

	if pkg.now == nil {
		pkg.now = time.Now
	}

	return pkg, nil
}

// Run resolves versions, skips when nothing changed and otherwise rebuilds and publishes.
func (p *packager) Run(ctx context.Context) error {
	prior, current, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	p.report(ctx, prior, current)

	if versions.Decide(prior, current, p.cfg.ComponentNames()) == versions.Skip {
		logger.Info(ctx, "Already up to date")

		return nil
	}

	ws, err := workspace.Acquire(ctx, p.cfg.OutputDir)
	if err != nil {
		return err
	}

	defer ws.Release(ctx)

	if err = p.assemble(ctx, ws); err != nil {
		return fmt.Errorf("assemble package: %w", err)
	}

	published, err := p.publish(ctx, ws, current)
	if err != nil {
		return fmt.Errorf("publish package: %w", err)
	}

	if err = p.mirror(ctx, current.Tag, published); err != nil {
		return fmt.Errorf("mirror package: %w", err)
	}

	if _, err = fmt.Fprintln(p.stdout, current.Tag); err != nil {
		return fmt.Errorf("print tag: %w", err)
	}

	logger.InfoKV(ctx, "Package published", "tag", current.Tag, "archive", published.Archive)

	return nil
}

// report logs the "old -> new" line of every component and of the tag.
func (p *packager) report(ctx context.Context, prior, current *versions.Record) {
	for _, change := range versions.Compare(prior, current, p.cfg.ComponentNames()) {
		logger.Infof(ctx, "%s: %s -> %s", change.Component, displayPrevious(change), change.Current)
	}

	previousTag := none
	if prior != nil && prior.Tag != "" {
		previousTag = prior.Tag
	}

	logger.Infof(ctx, "%s: %s -> %s", versions.TagKey, previousTag, current.Tag)
}

// none is printed for versions that are not known.
const none = "None"

// displayPrevious renders the prior version of a change.
func displayPrevious(change versions.Change) string {
	if !change.Known {
		return none
	}

	return change.Previous
}
