package versions

// Decision tells the pipeline whether to rebuild the package.
type Decision int

const (
	// Rebuild means the package must be rebuilt and republished.
	Rebuild Decision = iota
	// Skip means every tracked component is already published at its current version.
	Skip
)

// String returns a human-readable name of the decision.
func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}

	return "rebuild"
}

// Change describes one component in a prior/current comparison.
type Change struct {
	// Component is the tracked component name.
	Component string
	// Previous is the published version, meaningful only if Known.
	Previous string
	// Current is the freshly resolved version.
	Current string
	// Known is false when the prior record is absent or lacks the component.
	Known bool
}

// Changed reports whether the component must be rebuilt.
func (c Change) Changed() bool {
	return !c.Known || c.Previous != c.Current
}

// Compare lists the prior and current version of every tracked component, in order.
func Compare(prior, current *Record, components []string) []Change {
	changes := make([]Change, 0, len(components))

	for _, name := range components {
		previous, known := prior.Version(name)
		now, _ := current.Version(name)

		changes = append(changes, Change{
			Component: name,
			Previous:  previous,
			Current:   now,
			Known:     known,
		})
	}

	return changes
}

// Decide returns Skip only when prior is present and every tracked component
// has the same version in prior and current. The build tag is never compared.
func Decide(prior, current *Record, components []string) Decision {
	if prior == nil {
		return Rebuild
	}

	for _, change := range Compare(prior, current, components) {
		if change.Changed() {
			return Rebuild
		}
	}

	return Skip
}
