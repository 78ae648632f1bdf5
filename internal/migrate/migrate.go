// Package migrate orders schema migrations by semantic version and applies
// the ones newer than what a database already has.
package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

type Migration struct {
	Version string
	Up      string
}

// Target is implemented by each store. Apply must run the migration and
// record its version atomically.
type Target interface {
	AppliedVersions(ctx context.Context) ([]string, error)
	Apply(ctx context.Context, m Migration) error
}

// Pending returns the migrations newer than the highest applied version,
// oldest first.
func Pending(all []Migration, applied []string) ([]Migration, error) {
	current := semver.MustParse("0.0.0")
	for _, v := range applied {
		sv, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid applied schema version %s: %w", v, err)
		}
		if sv.GreaterThan(current) {
			current = sv
		}
	}

	type versioned struct {
		v *semver.Version
		m Migration
	}
	list := make([]versioned, 0, len(all))
	for _, m := range all {
		sv, err := semver.NewVersion(m.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !current.LessThan(sv) {
			continue
		}
		list = append(list, versioned{sv, m})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].v.LessThan(list[j].v) })

	out := make([]Migration, 0, len(list))
	for _, x := range list {
		out = append(out, x.m)
	}
	return out, nil
}

// Run applies every pending migration and returns how many ran.
func Run(ctx context.Context, t Target, all []Migration) (int, error) {
	applied, err := t.AppliedVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	pending, err := Pending(all, applied)
	if err != nil {
		return 0, err
	}
	for i, m := range pending {
		if err := t.Apply(ctx, m); err != nil {
			return i, fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
	}
	return len(pending), nil
}
