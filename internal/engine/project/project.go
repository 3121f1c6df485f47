// Package project groups the resources of an animation set. A Project is
// the editable form, authored as YAML; Cook packs it into one bit-packed
// buffer that LoadCooked turns back into runtime objects.
package project

import (
	"math/rand"
	"os"

	"github.com/Pallinder/go-randomdata"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-anim/internal/engine/animgraph"
	"github.com/Faultbox/midgard-anim/internal/engine/clip"
	"github.com/Faultbox/midgard-anim/internal/engine/resource"
	"github.com/Faultbox/midgard-anim/internal/engine/skeleton"
)

// ErrInvalidProject reports resources that do not fit together.
var ErrInvalidProject = errors.New("invalid project")

// SkeletonSource is the editable form of a skeleton.
type SkeletonSource struct {
	Joints []skeleton.Joint `yaml:"joints"`
}

// Resource is one project entry. Only the payload matching Kind is set.
type Resource struct {
	ID   resource.ID   `yaml:"id"`
	Name string        `yaml:"name"`
	Kind resource.Kind `yaml:"kind"`

	Skeleton *SkeletonSource  `yaml:"skeleton,omitempty"`
	Mask     *skeleton.Mask   `yaml:"mask,omitempty"`
	Clip     *clip.Source     `yaml:"clip,omitempty"`
	Graph    *animgraph.Graph `yaml:"graph,omitempty"`
}

func (r *Resource) hasPayload() bool {
	switch r.Kind {
	case resource.KindSkeleton:
		return r.Skeleton != nil
	case resource.KindMask:
		return r.Mask != nil
	case resource.KindClip:
		return r.Clip != nil
	case resource.KindGraph:
		return r.Graph != nil
	}
	return false
}

// Project is an editable set of resources kept in insertion order.
type Project struct {
	resources []*Resource
	byID      map[resource.ID]*Resource
	names     map[string]struct{}
	seeded    bool
}

// New returns an empty project.
func New() *Project {
	return &Project{
		byID:  make(map[resource.ID]*Resource),
		names: make(map[string]struct{}),
	}
}

// randomName picks an unused silly name. The sequence is seeded so that a
// given project always names its resources the same way.
func (p *Project) randomName() string {
	if !p.seeded {
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
		p.seeded = true
	}
	for {
		name := randomdata.SillyName()
		if _, exists := p.names[name]; !exists {
			return name
		}
	}
}

// Add adds a resource of the given kind. payload must be a *SkeletonSource,
// *skeleton.Mask, *clip.Source or *animgraph.Graph matching kind. An empty
// name is replaced by a generated one.
func (p *Project) Add(kind resource.Kind, name string, payload interface{}) (*Resource, error) {
	r := &Resource{ID: resource.NewID(), Name: name, Kind: kind}
	switch v := payload.(type) {
	case *SkeletonSource:
		r.Skeleton = v
	case *skeleton.Mask:
		r.Mask = v
	case *clip.Source:
		r.Clip = v
	case *animgraph.Graph:
		r.Graph = v
	}
	if err := p.insert(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Project) insert(r *Resource) error {
	if !r.Kind.Valid() {
		return errors.Wrapf(ErrInvalidProject, "resource %s: unknown kind %d", r.ID, r.Kind)
	}
	if !r.hasPayload() {
		return errors.Wrapf(ErrInvalidProject, "resource %s: missing %s payload", r.ID, r.Kind)
	}
	if r.ID == resource.Nil {
		r.ID = resource.NewID()
	}
	if _, dup := p.byID[r.ID]; dup {
		return errors.Wrapf(ErrInvalidProject, "duplicate resource id %s", r.ID)
	}
	if r.Name == "" {
		r.Name = p.randomName()
	}
	if _, dup := p.names[r.Name]; dup {
		return errors.Wrapf(ErrInvalidProject, "duplicate resource name %q", r.Name)
	}
	p.resources = append(p.resources, r)
	p.byID[r.ID] = r
	p.names[r.Name] = struct{}{}
	return nil
}

// Get returns the resource with the given id.
func (p *Project) Get(id resource.ID) (*Resource, bool) {
	r, ok := p.byID[id]
	return r, ok
}

// Lookup returns the resource with the given name.
func (p *Project) Lookup(name string) (*Resource, bool) {
	for _, r := range p.resources {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Resources returns the resources in insertion order.
func (p *Project) Resources() []*Resource {
	out := make([]*Resource, len(p.resources))
	copy(out, p.resources)
	return out
}

// Len returns the resource count.
func (p *Project) Len() int {
	return len(p.resources)
}

// ClipSkeleton implements animgraph.Resolver.
func (p *Project) ClipSkeleton(id resource.ID) (resource.ID, bool) {
	r, ok := p.byID[id]
	if !ok || r.Kind != resource.KindClip {
		return resource.Nil, false
	}
	return r.Clip.Skeleton, true
}

type document struct {
	Resources []*Resource `yaml:"resources"`
}

// Parse reads a project from YAML.
func Parse(data []byte) (*Project, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing project")
	}
	p := New()
	for _, r := range doc.Resources {
		if err := p.insert(r); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Load reads a project file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading project")
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return p, nil
}

// Marshal returns the YAML form of the project.
func (p *Project) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(document{Resources: p.resources})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling project")
	}
	return data, nil
}

// Save writes the project to path.
func (p *Project) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing project")
	}
	return nil
}
