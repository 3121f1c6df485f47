package project

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/clip"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
	"github.com/Faultbox/midgard-anim/pkg/digraph"
)

const (
	countBits    = 16
	maxResources = 1<<countBits - 1
)

type cookOptions struct {
	defaultScheme clip.Scheme
}

// CookOption configures Cook.
type CookOption func(*cookOptions)

// WithDefaultScheme sets the scheme of clips that name none.
func WithDefaultScheme(s clip.Scheme) CookOption {
	return func(o *cookOptions) {
		o.defaultScheme = s
	}
}

// Validate checks every resource against the resources it references and
// reports every problem found.
func (p *Project) Validate() error {
	_, err := p.build()
	return err
}

// build validates the project and constructs its skeletons.
func (p *Project) build() (map[resource.ID]*skeleton.Skeleton, error) {
	var errs error
	fail := func(r *Resource, err error) {
		errs = multierr.Append(errs, errors.Wrapf(err, "%s %q", r.Kind, r.Name))
	}
	missing := func(what string, id resource.ID) error {
		return errors.Wrapf(ErrInvalidProject, "%s %s not found", what, id)
	}

	skels := make(map[resource.ID]*skeleton.Skeleton)
	for _, r := range p.resources {
		if r.Kind != resource.KindSkeleton {
			continue
		}
		s, err := skeleton.New(r.Skeleton.Joints)
		if err != nil {
			fail(r, err)
			continue
		}
		skels[r.ID] = s
	}

	for _, r := range p.resources {
		switch r.Kind {
		case resource.KindMask:
			skel, ok := skels[r.Mask.Skeleton]
			if !ok {
				fail(r, missing("skeleton", r.Mask.Skeleton))
				continue
			}
			if err := r.Mask.Validate(skel); err != nil {
				fail(r, err)
			}

		case resource.KindClip:
			src := r.Clip
			skel, ok := skels[src.Skeleton]
			if !ok {
				fail(r, missing("skeleton", src.Skeleton))
				continue
			}
			if err := src.Validate(skel); err != nil {
				fail(r, err)
			}
			if a := src.Additive; a != nil {
				var base *clip.Source
				if b, ok := p.byID[a.Base]; ok && b.Kind == resource.KindClip {
					base = b.Clip
				}
				var mask *skeleton.Mask
				if a.Mask != resource.Nil {
					m, ok := p.byID[a.Mask]
					if !ok || m.Kind != resource.KindMask {
						fail(r, missing("mask", a.Mask))
						continue
					}
					mask = m.Mask
				}
				if err := src.ValidateAdditive(base, mask); err != nil {
					fail(r, err)
				}
			}

		case resource.KindGraph:
			if _, ok := skels[r.Graph.Skeleton]; !ok {
				fail(r, missing("skeleton", r.Graph.Skeleton))
				continue
			}
			if err := animgraph.Validate(r.Graph, p); err != nil {
				fail(r, err)
			}
		}
	}
	return skels, errs
}

// rank orders resource kinds so that every resource comes after the ones
// it may reference.
func rank(r *Resource) int {
	switch r.Kind {
	case resource.KindSkeleton:
		return 0
	case resource.KindMask:
		return 1
	case resource.KindClip:
		if r.Clip.Additive != nil {
			return 3
		}
		return 2
	default:
		return 4
	}
}

func dependencies(r *Resource) []resource.ID {
	switch r.Kind {
	case resource.KindMask:
		return []resource.ID{r.Mask.Skeleton}
	case resource.KindClip:
		deps := []resource.ID{r.Clip.Skeleton}
		if a := r.Clip.Additive; a != nil {
			deps = append(deps, a.Base)
			if a.Mask != resource.Nil {
				deps = append(deps, a.Mask)
			}
		}
		return deps
	case resource.KindGraph:
		return append([]resource.ID{r.Graph.Skeleton}, r.Graph.Clips()...)
	}
	return nil
}

// order returns the resources in cook order: grouped by rank, and within
// a rank in insertion order, with every dependency first.
func (p *Project) order() ([]*Resource, error) {
	ranked := p.Resources()
	sort.SliceStable(ranked, func(i, j int) bool { return rank(ranked[i]) < rank(ranked[j]) })

	g := digraph.New[resource.ID]()
	for _, r := range ranked {
		g.AddVertex(r.ID)
	}
	for _, r := range ranked {
		for _, dep := range dependencies(r) {
			if _, ok := p.byID[dep]; ok {
				g.AddEdge(dep, r.ID)
			}
		}
	}
	ids, err := g.TopologicalOrder()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidProject, err.Error())
	}
	out := make([]*Resource, len(ids))
	for i, id := range ids {
		out[i] = p.byID[id]
	}
	return out, nil
}

// Cook validates the project and writes every resource into buf in
// dependency order. It returns the number of bytes used. Running out of
// room fails the whole cook; the buffer contents are then unusable.
//
// Layout: resource count, then per resource [kind, id, name, payload].
// The count is patched in after the last resource.
func (p *Project) Cook(buf []byte, opts ...CookOption) (int, error) {
	o := cookOptions{defaultScheme: clip.SchemeQuantized}
	for _, opt := range opts {
		opt(&o)
	}

	if len(p.resources) > maxResources {
		return 0, errors.Wrapf(ErrInvalidProject, "%d resources, at most %d", len(p.resources), maxResources)
	}
	skels, err := p.build()
	if err != nil {
		return 0, err
	}
	order, err := p.order()
	if err != nil {
		return 0, err
	}

	log := logger.Named("cook")
	w := bitstream.NewWriter(buf)
	w.WriteBits(0, countBits)
	for _, r := range order {
		start := w.Pos()
		w.WriteBits(uint32(r.Kind), resource.KindBits)
		resource.WriteID(w, r.ID)
		w.WriteString(r.Name)
		if err := p.cookOne(w, r, skels, &o); err != nil {
			return 0, errors.Wrapf(err, "cooking %s %q", r.Kind, r.Name)
		}
		log.Debug("cooked resource",
			zap.Stringer("kind", r.Kind),
			zap.Stringer("id", r.ID),
			zap.String("name", r.Name),
			zap.Int("bits", w.Pos()-start))
	}
	if err := w.Patch(0, uint32(len(order)), countBits); err != nil {
		return 0, errors.Wrap(err, "patching resource count")
	}
	return w.Len(), nil
}

func (p *Project) cookOne(w *bitstream.Writer, r *Resource, skels map[resource.ID]*skeleton.Skeleton, o *cookOptions) error {
	switch r.Kind {
	case resource.KindSkeleton:
		return skels[r.ID].Encode(w)
	case resource.KindMask:
		return r.Mask.Encode(w)
	case resource.KindClip:
		env := clip.Env{Skeleton: skels[r.Clip.Skeleton], DefaultScheme: o.defaultScheme}
		if a := r.Clip.Additive; a != nil {
			env.Base = p.byID[a.Base].Clip
		}
		return r.Clip.Encode(w, env)
	case resource.KindGraph:
		g, err := animgraph.Cook(r.Graph, p)
		if err != nil {
			return err
		}
		return g.Encode(w)
	}
	return errors.Wrapf(ErrInvalidProject, "unknown kind %d", r.Kind)
}
