// Package authz is the single allow/deny surface for protected
// operations: a coarse permission-set check combined, where the matched
// code demands it, with a fine-grained ownership check.
package authz

import (
	"context"
	"sort"
	"strings"

	"github.com/classward/classward/internal/shared"
)

// OwnershipResolver is the fine-grained check the gate falls back to
// when a matched permission code is ownership-scoped.
type OwnershipResolver interface {
	EnsureCanAccessGroup(ctx context.Context, actor shared.Actor, groupID int64, action string) error
}

// Gate combines coarse and fine-grained authorization into one decision.
type Gate struct {
	ownership OwnershipResolver
}

// NewGate constructs a Gate.
func NewGate(ownership OwnershipResolver) *Gate {
	return &Gate{ownership: ownership}
}

// Authorize decides whether the actor may proceed. It is a pure function
// of its inputs and the stores behind the resolver: identical calls
// yield identical decisions. A returned error is an ownership violation
// or a store failure, never a plain permission denial — those are
// carried in the Decision.
func (g *Gate) Authorize(ctx context.Context, actor shared.Actor, codes []string, mode Mode, ref *ResourceRef) (Decision, error) {
	required := normalizeCodes(codes)
	if len(required) == 0 {
		return Decision{Allowed: true, Mode: mode}, nil
	}

	granted := make(map[string]struct{}, len(actor.Permissions))
	for _, p := range actor.Permissions {
		granted[strings.ToLower(p)] = struct{}{}
	}

	var matched, missing []string
	for _, code := range required {
		if _, ok := granted[code]; ok {
			matched = append(matched, code)
		} else {
			missing = append(missing, code)
		}
	}

	switch mode {
	case ModeAll:
		if len(missing) > 0 {
			return Decision{Mode: mode, Missing: missing}, nil
		}
	case ModeAny:
		if len(matched) == 0 {
			return Decision{Mode: mode, Attempted: required}, nil
		}
	}

	if ref != nil {
		if err := g.ensureScope(ctx, actor, matched, mode, *ref); err != nil {
			return Decision{Mode: mode}, err
		}
	}

	return Decision{Allowed: true, Mode: mode}, nil
}

// Require is Authorize with denials converted into errors for callers
// that want to short-circuit.
func (g *Gate) Require(ctx context.Context, actor shared.Actor, codes []string, mode Mode, ref *ResourceRef) error {
	decision, err := g.Authorize(ctx, actor, codes, mode, ref)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return DeniedError(decision)
	}
	return nil
}

// DeniedError builds the permission-denied error for a negative decision.
func DeniedError(decision Decision) *shared.Error {
	err := shared.E(shared.KindPermissionDenied, "required permissions not granted")
	if decision.Mode == ModeAny {
		err.MissingPermissions = decision.Attempted
	} else {
		err.MissingPermissions = decision.Missing
	}
	return err
}

// ensureScope runs the ownership check when the coarse grant hinged on
// an ownership-scoped code. In any-mode a match on an unscoped code
// (e.g. the ".any" variant) already covers the resource, so the scoped
// check is skipped.
func (g *Gate) ensureScope(ctx context.Context, actor shared.Actor, matched []string, mode Mode, ref ResourceRef) error {
	var scoped []string
	for _, code := range matched {
		if shared.OwnershipScoped(code) {
			scoped = append(scoped, code)
		}
	}
	if len(scoped) == 0 {
		return nil
	}
	if mode == ModeAny && len(scoped) < len(matched) {
		return nil
	}
	return g.ownership.EnsureCanAccessGroup(ctx, actor, ref.GroupID, scoped[0])
}

func normalizeCodes(codes []string) []string {
	unique := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(strings.ToLower(code))
		if code == "" {
			continue
		}
		unique[code] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for code := range unique {
		normalized = append(normalized, code)
	}
	sort.Strings(normalized)
	return normalized
}
