package event

import "sort"

// Filter selects events. Every field is optional: a nil slice or pointer
// leaves that dimension unconstrained, while a non-nil empty slice is a
// present constraint that matches nothing.
type Filter struct {
	IDs     []ID
	Authors []PublicKey
	Kinds   []Kind
	Since   *Timestamp
	Until   *Timestamp
	// Tags maps a tag name to the accepted values for that tag. Each entry
	// is an independent constraint.
	Tags  map[string][]string
	Limit *int
}

// NewFilter returns an unconstrained filter
func NewFilter() Filter {
	return Filter{}
}

// WithIDs constrains the filter to the given ids
func (f Filter) WithIDs(ids ...ID) Filter {
	f.IDs = append(make([]ID, 0, len(ids)), ids...)
	return f
}

// WithAuthors constrains the filter to the given authors
func (f Filter) WithAuthors(authors ...PublicKey) Filter {
	f.Authors = append(make([]PublicKey, 0, len(authors)), authors...)
	return f
}

// WithKinds constrains the filter to the given kinds
func (f Filter) WithKinds(kinds ...Kind) Filter {
	f.Kinds = append(make([]Kind, 0, len(kinds)), kinds...)
	return f
}

// WithSince sets the inclusive lower bound on created_at
func (f Filter) WithSince(ts Timestamp) Filter {
	f.Since = &ts
	return f
}

// WithUntil sets the inclusive upper bound on created_at
func (f Filter) WithUntil(ts Timestamp) Filter {
	f.Until = &ts
	return f
}

// WithTag adds a tag constraint, replacing any earlier one for the same name
func (f Filter) WithTag(name string, values ...string) Filter {
	tags := make(map[string][]string, len(f.Tags)+1)
	for k, v := range f.Tags {
		tags[k] = v
	}
	tags[name] = append(make([]string, 0, len(values)), values...)
	f.Tags = tags
	return f
}

// WithLimit caps the number of matching events
func (f Filter) WithLimit(limit int) Filter {
	f.Limit = &limit
	return f
}

// WithDefaultLimit returns the filter with limit set when none was given
func (f Filter) WithDefaultLimit(limit int) Filter {
	if f.Limit != nil {
		return f
	}
	return f.WithLimit(limit)
}

// IsEmpty reports whether the filter constrains nothing at all, limit included
func (f Filter) IsEmpty() bool {
	return f.IDs == nil &&
		f.Authors == nil &&
		f.Kinds == nil &&
		f.Since == nil &&
		f.Until == nil &&
		len(f.Tags) == 0 &&
		f.Limit == nil
}

// TagNames returns the constrained tag names in ascending order
func (f Filter) TagNames() []string {
	names := make([]string, 0, len(f.Tags))
	for name := range f.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Match reports whether e satisfies every constraint of the filter. The
// limit is not considered.
func (f Filter) Match(e Event) bool {
	if f.IDs != nil && !containsID(f.IDs, e.ID) {
		return false
	}
	if f.Authors != nil && !containsKey(f.Authors, e.PubKey) {
		return false
	}
	if f.Kinds != nil && !containsKind(f.Kinds, e.Kind) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	for name, values := range f.Tags {
		if !hasTagValue(e.Tags, name, values) {
			return false
		}
	}
	return true
}

func containsID(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsKey(keys []PublicKey, key PublicKey) bool {
	for _, v := range keys {
		if v == key {
			return true
		}
	}
	return false
}

func containsKind(kinds []Kind, kind Kind) bool {
	for _, v := range kinds {
		if v == kind {
			return true
		}
	}
	return false
}

func hasTagValue(tags []Tag, name string, values []string) bool {
	for _, t := range tags {
		content, ok := t.Content()
		if !ok || t.Name() != name {
			continue
		}
		for _, v := range values {
			if v == content {
				return true
			}
		}
	}
	return false
}
