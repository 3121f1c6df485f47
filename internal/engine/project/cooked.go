package project

import (
	"github.com/pkg/errors"

	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/clip"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
	"github.com/Faultbox/midgard-anim/pkg/bitstream"
)

// Entry describes one resource of a cooked project.
type Entry struct {
	ID   resource.ID
	Name string
	Kind resource.Kind
}

// Cooked is a loaded cooked project. Clips keep views into the buffer it
// was loaded from, which must stay unchanged while the project is in use.
type Cooked struct {
	entries   []Entry
	byName    map[string]Entry
	byID      map[resource.ID]Entry
	skeletons map[resource.ID]*skeleton.Skeleton
	masks     map[resource.ID]*skeleton.Mask
	clips     map[resource.ID]*clip.Clip
	graphs    map[resource.ID]*animgraph.Cooked
}

// LoadCooked parses a buffer written by Project.Cook.
func LoadCooked(buf []byte) (*Cooked, error) {
	r := bitstream.NewReader(buf)
	n := int(r.Uint(countBits))
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "reading resource count")
	}

	c := &Cooked{
		byName:    make(map[string]Entry, n),
		byID:      make(map[resource.ID]Entry, n),
		skeletons: make(map[resource.ID]*skeleton.Skeleton),
		masks:     make(map[resource.ID]*skeleton.Mask),
		clips:     make(map[resource.ID]*clip.Clip),
		graphs:    make(map[resource.ID]*animgraph.Cooked),
	}
	for i := 0; i < n; i++ {
		e := Entry{Kind: resource.Kind(r.Uint(resource.KindBits))}
		e.ID = resource.ReadID(r)
		e.Name = r.String()
		if err := r.Err(); err != nil {
			return nil, errors.Wrapf(err, "reading resource %d header", i)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidProject, "duplicate resource id %s", e.ID)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidProject, "duplicate resource name %q", e.Name)
		}
		if err := c.load(r, e); err != nil {
			return nil, errors.Wrapf(err, "loading %s %q", e.Kind, e.Name)
		}
		c.entries = append(c.entries, e)
		c.byName[e.Name] = e
		c.byID[e.ID] = e
	}
	return c, nil
}

func (c *Cooked) skeletonOf(id resource.ID) (*skeleton.Skeleton, error) {
	s, ok := c.skeletons[id]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidProject, "skeleton %s not loaded", id)
	}
	return s, nil
}

func (c *Cooked) load(r *bitstream.Reader, e Entry) error {
	switch e.Kind {
	case resource.KindSkeleton:
		s, err := skeleton.Decode(r)
		if err != nil {
			return err
		}
		c.skeletons[e.ID] = s

	case resource.KindMask:
		m, err := skeleton.DecodeMask(r)
		if err != nil {
			return err
		}
		skel, err := c.skeletonOf(m.Skeleton)
		if err != nil {
			return err
		}
		if err := m.Validate(skel); err != nil {
			return err
		}
		c.masks[e.ID] = m

	case resource.KindClip:
		cl, err := clip.Decode(r)
		if err != nil {
			return err
		}
		skel, err := c.skeletonOf(cl.Skeleton())
		if err != nil {
			return err
		}
		if err := cl.Validate(skel); err != nil {
			return err
		}
		if a := cl.Additive(); a != nil {
			var mask *skeleton.Mask
			if a.Mask != resource.Nil {
				m, ok := c.masks[a.Mask]
				if !ok {
					return errors.Wrapf(ErrInvalidProject, "mask %s not loaded", a.Mask)
				}
				mask = m
			}
			if err := cl.Link(c.clips[a.Base], mask); err != nil {
				return err
			}
		}
		c.clips[e.ID] = cl

	case resource.KindGraph:
		g, err := animgraph.Decode(r)
		if err != nil {
			return err
		}
		if _, err := c.skeletonOf(g.Skeleton()); err != nil {
			return err
		}
		if err := g.Validate(c); err != nil {
			return err
		}
		c.graphs[e.ID] = g

	default:
		return errors.Wrapf(ErrInvalidProject, "unknown kind %d", e.Kind)
	}
	return nil
}

// Resources returns the entries in buffer order.
func (c *Cooked) Resources() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup returns the entry with the given name.
func (c *Cooked) Lookup(name string) (Entry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// Entry returns the entry with the given id.
func (c *Cooked) Entry(id resource.ID) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Skeleton returns a loaded skeleton.
func (c *Cooked) Skeleton(id resource.ID) (*skeleton.Skeleton, bool) {
	s, ok := c.skeletons[id]
	return s, ok
}

// Mask returns a loaded mask.
func (c *Cooked) Mask(id resource.ID) (*skeleton.Mask, bool) {
	m, ok := c.masks[id]
	return m, ok
}

// Clip returns a loaded clip.
func (c *Cooked) Clip(id resource.ID) (*clip.Clip, bool) {
	cl, ok := c.clips[id]
	return cl, ok
}

// Graph returns a loaded graph.
func (c *Cooked) Graph(id resource.ID) (*animgraph.Cooked, bool) {
	g, ok := c.graphs[id]
	return g, ok
}

// GraphByName returns the graph resource with the given name.
func (c *Cooked) GraphByName(name string) (*animgraph.Cooked, bool) {
	e, ok := c.byName[name]
	if !ok || e.Kind != resource.KindGraph {
		return nil, false
	}
	return c.Graph(e.ID)
}

// ClipSkeleton implements animgraph.Resolver.
func (c *Cooked) ClipSkeleton(id resource.ID) (resource.ID, bool) {
	cl, ok := c.clips[id]
	if !ok {
		return resource.Nil, false
	}
	return cl.Skeleton(), true
}
