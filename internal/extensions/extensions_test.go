package extensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetMatches(t *testing.T) {
	set := NewSet(".DST", "pes", ".ds_store")
	cases := []struct {
		name string
		want bool
	}{
		{"design.dst", true},
		{"DESIGN.DST", true},
		{"flower.Pes", true},
		{".DS_Store", true},
		{".hidden.dst", true},
		{"notes.txt", false},
		{"dst", false},
		{".dst", true},
		{"archive.dst.bak", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, set.Matches(c.name), "Matches(%q)", c.name)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, ".ds_store", Key(".DS_Store"))
	assert.Equal(t, ".dst", Key(".Hidden.DST"))
	assert.Equal(t, ".png", Key("thumb.PNG"))
	assert.Equal(t, "", Key("README"))
}

func TestRegistryIsDisjoint(t *testing.T) {
	for e := range Display {
		assert.Falsef(t, Template.Has(e), "%s is in both sets", e)
	}
	assert.True(t, Recognized("JEF"))
	assert.True(t, Recognized(".pdf"))
	assert.False(t, Recognized(".txt"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ".exp", Normalize(" EXP "))
	assert.Equal(t, ".vp3", Normalize(".VP3"))
	assert.Equal(t, "", Normalize("  "))
}
