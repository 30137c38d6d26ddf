package watched

import (
	"context"

	"jellybridge/internal/fingerprint"
	"jellybridge/internal/pathmap"
)

// Catalog is the destination-side lookup the resolver needs. Implemented
// by librarydb.Store.
type Catalog interface {
	FingerprintByPath(ctx context.Context, path string) (fp string, found bool, err error)
}

// Resolver maps a source file path to the destination's dashed state key.
type Resolver struct {
	rules   pathmap.Rules
	catalog Catalog
}

// NewResolver builds a resolver over the destination catalog with the
// configured path rules.
func NewResolver(rules pathmap.Rules, catalog Catalog) *Resolver {
	return &Resolver{rules: rules, catalog: catalog}
}

// Resolution is the outcome of one path lookup against the destination
// catalog.
type Resolution struct {
	// Key is the dashed destination state key; empty unless Found.
	Key string
	// Found reports whether the destination catalog has the translated path.
	Found bool
	// PrefixMatched is false when no prefix rule applied and the path fell
	// through with separator normalization only.
	PrefixMatched bool
	// TranslatedPath is the destination-convention path that was looked up.
	TranslatedPath string
}

// Resolve translates the source path through the rules and looks it up in
// the destination catalog. The catalog fingerprint is canonicalized and
// reformatted into the dashed shape the state table keys on; the source's
// own formatting is never trusted.
func (r *Resolver) Resolve(ctx context.Context, sourcePath string) (Resolution, error) {
	translated, matched := r.rules.Translate(sourcePath)
	resolution := Resolution{PrefixMatched: matched, TranslatedPath: translated}

	fp, found, err := r.catalog.FingerprintByPath(ctx, translated)
	if err != nil || !found {
		return resolution, err
	}
	resolution.Found = true
	resolution.Key = fingerprint.Format(fingerprint.Canonicalize(fp))
	return resolution, nil
}
