package resultcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeyDeterministic(t *testing.T) {
	a := NewKey("what is the leave policy?", "HR")
	b := NewKey("what is the leave policy?", "HR")
	assert.Equal(t, a.String(), b.String())
}

func TestNewKeyNormalizesQuery(t *testing.T) {
	a := NewKey("  What is the Leave Policy?  ", "HR")
	b := NewKey("what is the leave policy?", "HR")
	assert.Equal(t, a.String(), b.String())
}

func TestNewKeySeparatesDepartments(t *testing.T) {
	// Same query, different departments: the keys must differ, so a
	// cached answer can never be served across a department boundary.
	hr := NewKey("what is the leave policy?", "HR")
	sales := NewKey("what is the leave policy?", "Sales")
	assert.NotEqual(t, hr.String(), sales.String())
	assert.Equal(t, "HR", hr.Department())
	assert.Equal(t, "Sales", sales.Department())
}

func TestKeyStringMatchesDepartmentPattern(t *testing.T) {
	key := NewKey("anything", "Finance")
	pattern := DepartmentPattern("Finance")
	assert.Contains(t, key.String(), "rag:Finance:")
	assert.Equal(t, "rag:Finance:*", pattern)
}

func TestKeyNotForgeableFromQueryAlone(t *testing.T) {
	// A digest computed over only the query text never matches a real
	// key: the department participates in the hash, not just the prefix.
	forged := NewKey("quarterly revenue", "")
	real := NewKey("quarterly revenue", "Finance")
	assert.NotContains(t, real.String(), forged.String()[len("rag::"):])
}
