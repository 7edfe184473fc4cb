// Package extensions holds the recognized file extension registry and the
// name matcher used to pick deletion candidates and display files.
package extensions

import (
	"path/filepath"
	"sort"
	"strings"
)

// Set is a set of normalized (lowercased, dot-prefixed) extensions.
type Set map[string]struct{}

// Template extensions are embroidery and sewing machine formats that are
// candidates for deletion.
var Template = NewSet(
	".exp", ".hus", ".jef", ".pcs", ".rgb", ".sew", ".vip",
	".vp3", ".xxx", ".shv", ".csd", ".art", ".jan", ".edr",
	".emb", ".inf", ".pec", ".pes", ".dst", ".ds_store",
)

// Display extensions do not by themselves make a directory non-empty.
var Display = NewSet(".pdf", ".png", ".jpg")

// NewSet builds a Set, normalizing every entry.
func NewSet(exts ...string) Set {
	s := make(Set, len(exts))
	for _, e := range exts {
		if n := Normalize(e); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Normalize trims, lowercases and dot-prefixes ext. Empty input stays empty.
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Recognized reports whether ext belongs to either registry set.
func Recognized(ext string) bool {
	n := Normalize(ext)
	return Template.Has(n) || Display.Has(n)
}

// Key returns the string a file name is matched by: the whole lowercased
// name for dotfiles like ".DS_Store", otherwise the lowercased suffix.
func Key(name string) string {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, ".") && !strings.Contains(name[1:], ".") {
		return name
	}
	return filepath.Ext(name)
}

// Has reports membership of ext, ignoring case.
func (s Set) Has(ext string) bool {
	_, ok := s[Normalize(ext)]
	return ok
}

// Matches reports whether the file name belongs to the set.
func (s Set) Matches(name string) bool {
	k := Key(name)
	if k == "" {
		return false
	}
	_, ok := s[k]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for e := range s {
		c[e] = struct{}{}
	}
	return c
}
