package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	assert.Equal(t, "paracetamol 500mg box", Name("Paracetamol 500mg (Box)"))
	assert.Equal(t, Name("Paracetamol 500mg (Box)"), Name("paracetamol  500MG box"))
	assert.Equal(t, "ibuprofen 200", Name("Ibuprofen\u200c200"))
	assert.Empty(t, Name("   "))
	assert.Equal(t, "aspirin", Key("  Aspirin "))
}

func TestSimilarity(t *testing.T) {
	score, distance, ok := Similarity("abcdefghij", "abcdefghix", 90)
	assert.True(t, ok)
	assert.Equal(t, 1, distance)
	assert.InDelta(t, 90.0, score, 0.001)

	_, _, ok = Similarity("abcdefghij", "abcdefgxyz", 90)
	assert.False(t, ok)

	score, _, ok = Similarity("", "", 92)
	assert.True(t, ok)
	assert.InDelta(t, 100.0, score, 0.001)
}

func TestMatcher(t *testing.T) {
	m := NewMatcher(90)
	m.Add(1, "Amoxicillin 500")
	m.Add(2, "Cetirizine 10")
	m.Add(3, "amoxicillin-500")

	id, exact, ok := m.Match("AMOXICILLIN (500)")
	assert.True(t, ok)
	assert.True(t, exact)
	assert.Equal(t, int64(1), id)

	id, exact, ok = m.Match("Amoxicilin 500")
	assert.True(t, ok)
	assert.False(t, exact)
	assert.Equal(t, int64(1), id)

	_, _, ok = m.Match("Unknown")
	assert.False(t, ok)
}
