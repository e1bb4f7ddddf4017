package scorer

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is a built scorer together with the kind it was declared as.
type Entry struct {
	Kind   Kind
	Class  string
	Scorer Scorer
}

// Registry is the immutable, ordered set of scorers. Its order is the single
// source of truth for feature columns: document scorers first, then query
// scorers, then query/document scorers, each in registration order.
type Registry struct {
	entries  []Entry
	headers  []string
	required []string
}

// NewRegistry validates and orders already built scorers.
func NewRegistry(entries ...Entry) (*Registry, error) {
	byKind := make([][]Entry, 3)
	owner := make(map[string]string, len(entries))

	for _, e := range entries {
		if e.Scorer == nil {
			return nil, configErrorf("scorer %q is nil", e.Class)
		}
		if !implements(e.Scorer, e.Kind) {
			return nil, configErrorf("scorer %q (%s) is declared as type %q but does not implement it",
				e.Scorer.Name(), e.Class, e.Kind)
		}
		short := e.Scorer.ShortName()
		if short == "" {
			return nil, configErrorf("scorer %q (%s) has an empty short_name", e.Scorer.Name(), e.Class)
		}
		if prev, ok := owner[short]; ok {
			return nil, configErrorf("duplicate short_name %q used by %q and %q", short, prev, e.Scorer.Name())
		}
		owner[short] = e.Scorer.Name()
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	r := &Registry{}
	requiredSet := make(map[string]struct{})
	for kind, group := range byKind {
		for _, e := range group {
			r.entries = append(r.entries, e)
			r.headers = append(r.headers, e.Scorer.ShortName())
			if Kind(kind) == KindDocument {
				continue
			}
			for _, f := range e.Scorer.RequiredFields() {
				requiredSet[f] = struct{}{}
			}
		}
	}
	for f := range requiredSet {
		r.required = append(r.required, f)
	}
	sort.Strings(r.required)
	return r, nil
}

func implements(s Scorer, kind Kind) bool {
	switch kind {
	case KindDocument:
		_, ok := s.(DocumentScorer)
		return ok
	case KindQuery:
		_, ok := s.(QueryScorer)
		return ok
	case KindQueryDocument:
		_, ok := s.(QueryDocumentScorer)
		return ok
	default:
		return false
	}
}

// Build instantiates every descriptor through the factory registered for its
// class and returns the resulting Registry.
func Build(descs []Descriptor, deps Deps) (*Registry, error) {
	entries := make([]Entry, 0, len(descs))
	for i, d := range descs {
		kind, err := ParseKind(d.Type)
		if err != nil {
			return nil, &ConfigurationError{Msg: descriptorLabel(i, d), Err: err}
		}
		factory, ok := lookupFactory(d.Class)
		if !ok {
			return nil, configErrorf("%s: unknown scorer class %q (supported: %s)",
				descriptorLabel(i, d), d.Class, strings.Join(SupportedTypes(), ", "))
		}
		args := d.InitArgs
		if args == nil {
			args = Args{}
		}
		s, err := factory(args, deps)
		if err != nil {
			return nil, &ConfigurationError{Msg: descriptorLabel(i, d), Err: err}
		}
		entries = append(entries, Entry{Kind: kind, Class: d.Class, Scorer: s})
	}
	return NewRegistry(entries...)
}

func descriptorLabel(i int, d Descriptor) string {
	if d.Class == "" {
		return fmt.Sprintf("scorers[%d]", i)
	}
	return fmt.Sprintf("scorers[%d] %s", i, d.Class)
}

// Len returns the number of scorers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns the scorers in column order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Headers returns the feature column names in column order.
func (r *Registry) Headers() []string {
	out := make([]string, len(r.headers))
	copy(out, r.headers)
	return out
}

// RequiredFields returns the sorted union of fields read by query and
// query/document scorers.
func (r *Registry) RequiredFields() []string {
	out := make([]string, len(r.required))
	copy(out, r.required)
	return out
}
