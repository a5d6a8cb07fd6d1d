package template

import (
	"context"
	"sync"
	"time"

	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// memoryStore keeps template versions in a pair-keyed map. One lock
// spans every state transition, so the activation invariants hold
// without further coordination.
type memoryStore struct {
	logger observability.Logger

	mu    sync.RWMutex
	pairs map[string]map[string]Template
}

// NewMemoryStore creates an in-memory template store.
func NewMemoryStore(logger observability.Logger) Store {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &memoryStore{
		logger: logger,
		pairs:  make(map[string]map[string]Template),
	}
}

// Create persists a new version, deactivating the pair's previous
// active version when activate is set.
func (s *memoryStore) Create(_ context.Context, tmpl Template, activate bool) (Template, error) {
	if err := tmpl.Validate(); err != nil {
		return Template{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(tmpl.ConsumerID, tmpl.Subject)
	versions, ok := s.pairs[key]
	if !ok {
		versions = make(map[string]Template)
		s.pairs[key] = versions
	}

	if _, exists := versions[tmpl.Version]; exists {
		return Template{}, util.NewConflictError("template", tmpl.Coordinate(),
			"version already exists")
	}

	now := time.Now().UTC()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now
	tmpl.Active = activate

	if activate {
		for version, existing := range versions {
			if existing.Active {
				existing.Active = false
				existing.UpdatedAt = now
				versions[version] = existing
			}
		}
	}
	versions[tmpl.Version] = tmpl

	s.logger.Debug("template version created",
		observability.String("template", tmpl.Coordinate()),
		observability.Bool("active", tmpl.Active),
	)

	return tmpl, nil
}

// GetVersion returns one version of a pair.
func (s *memoryStore) GetVersion(_ context.Context, consumerID, subject, version string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmpl, ok := s.pairs[pairKey(consumerID, subject)][version]
	if !ok {
		return Template{}, util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}
	return tmpl, nil
}

// GetActive returns the pair's active version.
func (s *memoryStore) GetActive(_ context.Context, consumerID, subject string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tmpl := range s.pairs[pairKey(consumerID, subject)] {
		if tmpl.Active {
			return tmpl, nil
		}
	}
	return Template{}, util.NewNotFoundError("template", versionKey(consumerID, subject, "active"))
}

// ListVersions returns the pair's versions in ascending semantic
// version order.
func (s *memoryStore) ListVersions(_ context.Context, consumerID, subject string) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.pairs[pairKey(consumerID, subject)]
	out := make([]Template, 0, len(versions))
	for _, tmpl := range versions {
		out = append(out, tmpl)
	}
	sortByVersion(out)
	return out, nil
}

// CountVersions returns the number of versions stored for a pair.
func (s *memoryStore) CountVersions(_ context.Context, consumerID, subject string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.pairs[pairKey(consumerID, subject)]), nil
}

// Activate makes the given version the pair's active one.
func (s *memoryStore) Activate(_ context.Context, consumerID, subject, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.pairs[pairKey(consumerID, subject)]
	target, ok := versions[version]
	if !ok {
		return util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}

	if target.Active {
		return nil
	}

	now := time.Now().UTC()
	for v, existing := range versions {
		if existing.Active {
			existing.Active = false
			existing.UpdatedAt = now
			versions[v] = existing
		}
	}
	target.Active = true
	target.UpdatedAt = now
	versions[version] = target

	s.logger.Debug("template version activated",
		observability.String("template", target.Coordinate()),
	)

	return nil
}

// Deactivate turns the given version off and promotes the highest
// remaining version.
func (s *memoryStore) Deactivate(_ context.Context, consumerID, subject, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.pairs[pairKey(consumerID, subject)]
	target, ok := versions[version]
	if !ok {
		return util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}

	if !target.Active {
		return util.NewConflictError("template", target.Coordinate(),
			"version is not active")
	}
	if len(versions) == 1 {
		return util.NewConflictError("template", target.Coordinate(),
			"cannot deactivate the only version")
	}

	all := make([]Template, 0, len(versions))
	for _, tmpl := range versions {
		all = append(all, tmpl)
	}
	successor, ok := successorVersion(all, version)
	if !ok {
		return util.NewConflictError("template", target.Coordinate(),
			"cannot deactivate the only version")
	}

	now := time.Now().UTC()
	target.Active = false
	target.UpdatedAt = now
	versions[version] = target

	promoted := versions[successor]
	promoted.Active = true
	promoted.UpdatedAt = now
	versions[successor] = promoted

	s.logger.Debug("template version deactivated",
		observability.String("template", target.Coordinate()),
		observability.String("promoted", promoted.Coordinate()),
	)

	return nil
}

// Delete removes the given version.
func (s *memoryStore) Delete(_ context.Context, consumerID, subject, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(consumerID, subject)
	versions := s.pairs[key]
	target, ok := versions[version]
	if !ok {
		return util.NewNotFoundError("template", versionKey(consumerID, subject, version))
	}

	if target.Active {
		return util.NewConflictError("template", target.Coordinate(),
			"cannot delete the active version")
	}
	if len(versions) == 1 {
		return util.NewConflictError("template", target.Coordinate(),
			"cannot delete the only version")
	}

	delete(versions, version)
	if len(versions) == 0 {
		delete(s.pairs, key)
	}

	return nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	return nil
}

var _ Store = (*memoryStore)(nil)
