package repository

import (
	"context"
	"fmt"

	"github.com/open-edge-platform/stack-installer/internal/catalog"
	"github.com/open-edge-platform/stack-installer/internal/installerr"
	"github.com/open-edge-platform/stack-installer/internal/utils/logger"
)

// ResolveDependencies returns the closure of selected against the loaded
// catalog, in install order.
func (r *Repository) ResolveDependencies(ctx context.Context, selected []catalog.Package) ([]catalog.Package, error) {
	available, err := r.GetAvailablePackages(ctx, r.defaultSource)
	if err != nil {
		return nil, err
	}
	return ResolveDependencies(selected, available)
}

// ResolveDependencies computes the breadth-first closure of selected over
// Dependencies, deduplicated by id, and orders it topologically. Among
// packages that are ready at the same time, fewer dependencies go first, then
// catalog order. InstallAfter edges only order packages already in the
// closure. Cycles are broken rather than looped on.
func ResolveDependencies(selected, available []catalog.Package) ([]catalog.Package, error) {
	log := logger.Logger()

	index := make(map[catalog.PackageID]int, len(available))
	for i, p := range available {
		index[p.ID] = i
	}

	set := make(map[catalog.PackageID]catalog.Package)
	var queue []catalog.Package
	for _, p := range selected {
		if _, seen := set[p.ID]; seen {
			continue
		}
		if full, ok := lookup(available, index, p.ID); ok {
			p = full
		}
		set[p.ID] = p
		queue = append(queue, p)
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, dep := range p.Dependencies {
			if dep == p.ID {
				continue
			}
			if _, seen := set[dep]; seen {
				continue
			}
			d, ok := lookup(available, index, dep)
			if !ok {
				return nil, installerr.New(installerr.ErrCatalogUnavailable, string(p.ID),
					fmt.Sprintf("dependency %s is not in the catalog", dep), nil)
			}
			set[dep] = d
			queue = append(queue, d)
		}
	}

	ordered := topoSort(set, index)
	ids := make([]catalog.PackageID, len(ordered))
	for i, p := range ordered {
		ids[i] = p.ID
	}
	log.Debugf("resolved install order: %v", ids)
	return ordered, nil
}

func lookup(available []catalog.Package, index map[catalog.PackageID]int, id catalog.PackageID) (catalog.Package, bool) {
	i, ok := index[id]
	if !ok {
		return catalog.Package{}, false
	}
	return available[i], true
}

// topoSort runs Kahn's algorithm over the closure.
func topoSort(set map[catalog.PackageID]catalog.Package, index map[catalog.PackageID]int) []catalog.Package {
	log := logger.Logger()

	indegree := make(map[catalog.PackageID]int, len(set))
	dependents := make(map[catalog.PackageID][]catalog.PackageID, len(set))
	for id, p := range set {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		seen := make(map[catalog.PackageID]bool)
		edges := append(append([]catalog.PackageID(nil), p.Dependencies...), p.InstallAfter...)
		for _, before := range edges {
			if before == id || seen[before] {
				continue
			}
			if _, in := set[before]; !in {
				continue
			}
			seen[before] = true
			indegree[id]++
			dependents[before] = append(dependents[before], id)
		}
	}

	less := func(a, b catalog.PackageID) bool {
		pa, pb := set[a], set[b]
		if len(pa.Dependencies) != len(pb.Dependencies) {
			return len(pa.Dependencies) < len(pb.Dependencies)
		}
		ia, okA := index[a]
		ib, okB := index[b]
		switch {
		case okA && okB && ia != ib:
			return ia < ib
		case okA != okB:
			return okA
		}
		return a < b
	}

	done := make(map[catalog.PackageID]bool, len(set))
	out := make([]catalog.Package, 0, len(set))
	for len(out) < len(set) {
		var next catalog.PackageID
		found := false
		for id := range set {
			if done[id] || indegree[id] != 0 {
				continue
			}
			if !found || less(id, next) {
				next, found = id, true
			}
		}
		if !found {
			// Only cycle members remain; take the best candidate anyway.
			for id := range set {
				if done[id] {
					continue
				}
				if !found || less(id, next) {
					next, found = id, true
				}
			}
			log.Warnf("dependency cycle detected, installing %s before its dependencies", next)
		}

		done[next] = true
		out = append(out, set[next])
		for _, dep := range dependents[next] {
			if indegree[dep] > 0 {
				indegree[dep]--
			}
		}
	}
	return out
}
