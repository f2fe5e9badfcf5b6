package servhub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ServiceFactory creates an in-process service instance. The factory
// receives the broker so the produced service can itself request further
// services; recursive resolution follows the same rules as any caller.
// If the returned instance implements io.Closer it is closed when the
// owning proxy is.
type ServiceFactory func(ctx context.Context, broker *Broker, opts ActivationOptions) (any, error)

// offer couples a descriptor with the provider behind it: either an
// in-process factory or the name of a channel an out-of-process host
// listens on. Offers are immutable once stored; proffering again replaces
// the pointer, never the contents.
type offer struct {
	descriptor Descriptor
	factory    ServiceFactory
	channel    string
}

func (of *offer) remote() bool {
	return of.factory == nil
}

type registryEntry struct {
	registration ServiceRegistration
	// registered tells whether Register was called explicitly; entries
	// created implicitly by a proffer default to the local audience.
	registered bool

	exact    map[string]*offer
	catchAll *offer
}

func (e *registryEntry) empty() bool {
	return len(e.exact) == 0 && e.catchAll == nil
}

// registry maps service names to registrations and version-keyed providers.
// A single RWMutex guards the tree: mutations are rare and strictly scoped,
// resolution takes the read lock only, so concurrent resolvers never
// observe a partial mutation and never block each other in steady state.
type registry struct {
	lk     sync.RWMutex
	names  *Tree[*registryEntry]
	logger *slog.Logger
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		names:  NewTree[*registryEntry](),
		logger: logger,
	}
}

// register declares the visibility gate for a name. Conflicting
// re-registration fails; an identical one is a no-op. With force, the new
// registration replaces the old unconditionally.
func (r *registry) register(name string, reg ServiceRegistration, force bool) error {
	if !ValidateServiceName(name) {
		return fmt.Errorf("%w: %q", ErrMonikerInvalid, name)
	}

	r.lk.Lock()
	defer r.lk.Unlock()

	entry, has := r.names.Get(name)
	if !has {
		r.names.Insert(name, &registryEntry{
			registration: reg,
			registered:   true,
			exact:        make(map[string]*offer),
		})
		return nil
	}

	if entry.registered && !force {
		if entry.registration == reg {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrDuplicateRegistration, name)
	}

	entry.registration = reg
	entry.registered = true
	return nil
}

// proffer associates a provider with the descriptor's moniker. A nil
// version is the catch-all used only when no exact version matches.
// Proffering the same (name, version) twice is last-proffer-wins; the
// replacement is logged so an accidental override is visible.
func (r *registry) proffer(of *offer) error {
	m := of.descriptor.Moniker
	if !ValidateServiceName(m.Name) {
		return fmt.Errorf("%w: %q", ErrMonikerInvalid, m.Name)
	}

	r.lk.Lock()
	defer r.lk.Unlock()

	entry, has := r.names.Get(m.Name)
	if !has {
		entry = &registryEntry{
			// Not registered yet: only same-process/machine callers may
			// see it until an explicit Register widens the audience.
			registration: ServiceRegistration{Audience: AudienceLocal},
			exact:        make(map[string]*offer),
		}
		r.names.Insert(m.Name, entry)
	}

	if m.Version == nil {
		if entry.catchAll != nil {
			r.logger.Warn("replacing catch-all provider", LabelService.L(m.Name))
		}
		entry.catchAll = of
		return nil
	}

	key := m.Version.String()
	if _, replaced := entry.exact[key]; replaced {
		r.logger.Warn("replacing provider",
			LabelService.L(m.Name), LabelVersion.L(key))
	}
	entry.exact[key] = of
	return nil
}

// resolve picks the provider for a moniker. The visibility gate runs before
// any provider lookup: a caller outside the registered audience learns
// nothing about which versions exist, or whether any do.
//
// Version selection: an exact-version provider wins; otherwise the
// catch-all serves any requested version. A version-agnostic request takes
// the catch-all first and falls back to the highest exact version.
func (r *registry) resolve(m Moniker, c Caller) (*offer, error) {
	if !ValidateServiceName(m.Name) {
		return nil, fmt.Errorf("%w: %q", ErrMonikerInvalid, m.Name)
	}

	r.lk.RLock()
	defer r.lk.RUnlock()

	entry, has := r.names.Get(m.Name)
	if !has {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, m)
	}

	if !entry.registration.admits(c) {
		return nil, fmt.Errorf("%w: %q", ErrAccessDenied, m)
	}

	if m.Version != nil {
		if of, ok := entry.exact[m.Version.String()]; ok {
			return of, nil
		}
		if entry.catchAll != nil {
			return entry.catchAll, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, m)
	}

	if entry.catchAll != nil {
		return entry.catchAll, nil
	}
	if of := entry.newestExact(); of != nil {
		return of, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, m)
}

func (e *registryEntry) newestExact() *offer {
	var best *offer
	for _, of := range e.exact {
		if best == nil ||
			of.descriptor.Moniker.Version.Compare(*best.descriptor.Moniker.Version) > 0 {
			best = of
		}
	}
	return best
}

// listVersions returns the proffered versions of a name in ascending order,
// nil (the catch-all) first. The slice is built under the read lock so it
// reflects a single consistent snapshot.
func (r *registry) listVersions(name string) []*Version {
	r.lk.RLock()
	defer r.lk.RUnlock()

	entry, has := r.names.Get(name)
	if !has {
		return nil
	}

	versions := make([]*Version, 0, len(entry.exact)+1)
	if entry.catchAll != nil {
		versions = append(versions, nil)
	}
	for _, of := range entry.exact {
		versions = append(versions, of.descriptor.Moniker.Version)
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i] == nil || versions[j] == nil {
			return versions[i] == nil
		}
		return versions[i].Compare(*versions[j]) < 0
	})
	return versions
}

// scan returns, in order, the names under the prefix that currently have at
// least one provider.
func (r *registry) scan(prefix string) []string {
	r.lk.RLock()
	defer r.lk.RUnlock()

	var found []string
	for name, entry := range r.names.WalkPrefix(prefix) {
		if !entry.empty() {
			found = append(found, name)
		}
	}
	return found
}

// unproffer removes a single provider; the entry survives while it still
// holds other offers or an explicit registration.
func (r *registry) unproffer(m Moniker) bool {
	r.lk.Lock()
	defer r.lk.Unlock()

	entry, has := r.names.Get(m.Name)
	if !has {
		return false
	}

	removed := false
	if m.Version == nil {
		removed = entry.catchAll != nil
		entry.catchAll = nil
	} else {
		key := m.Version.String()
		_, removed = entry.exact[key]
		delete(entry.exact, key)
	}

	if entry.empty() && !entry.registered {
		r.names.Delete(m.Name)
	}
	return removed
}

// unregister drops a name entirely, offers included.
func (r *registry) unregister(name string) bool {
	r.lk.Lock()
	defer r.lk.Unlock()
	_, had := r.names.Delete(name)
	return had
}
