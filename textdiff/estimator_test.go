package textdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSimilarity_Identity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Similarity("the quick brown fox", "the quick brown fox"))
	assert.Equal(t, 1.0, Similarity("a", "a"))
}

func TestSimilarity_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Similarity("", "anything at all"))
	assert.Equal(t, 0.0, Similarity("anything at all", ""))
	assert.Equal(t, 0.0, Similarity("", ""))
}

func TestSimilarity_PartialOverlap(t *testing.T) {
	t.Parallel()

	// {a b c} vs {b c d}: intersection 2, union 4
	assert.InDelta(t, 0.5, Similarity("a b c", "b c d"), 1e-9)

	// Disjoint sets
	assert.Equal(t, 0.0, Similarity("alpha beta", "gamma delta"))
}

func TestSimilarity_Symmetry(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.StringMatching(`[a-z #]{0,40}`).Draw(t, "a")
		b := rapid.StringMatching(`[a-z #]{0,40}`).Draw(t, "b")
		if Similarity(a, b) != Similarity(b, a) {
			t.Fatalf("similarity not symmetric for %q / %q", a, b)
		}
	})
}

func TestSimilarity_Range(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.StringMatching(`[a-z0-9 ]{0,60}`).Draw(t, "a")
		b := rapid.StringMatching(`[a-z0-9 ]{0,60}`).Draw(t, "b")
		s := Similarity(a, b)
		if s < 0 || s > 1 {
			t.Fatalf("similarity %v out of range for %q / %q", s, a, b)
		}
	})
}

func TestIsSubset_EmptyChild(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSubset("some parent text here", ""))
	// Tokens of length <= 2 are dropped, so a child of short tokens is empty.
	assert.True(t, IsSubset("some parent text here", "a b if of"))
	assert.True(t, IsSubset("", ""))
}

func TestIsSubset_Containment(t *testing.T) {
	t.Parallel()

	parent := "which planet is known as the red planet mars venus jupiter saturn"
	child := "which planet is known as the red planet"
	assert.True(t, IsSubset(parent, child))

	// Child mostly outside the parent.
	assert.False(t, IsSubset(parent, "completely unrelated sentence about databases"))
}

func TestIsSubset_CursorOcclusion(t *testing.T) {
	t.Parallel()

	// A cursor hides one word of the question; remaining text is still a
	// subset of the reference, so no change should be signalled.
	full := "select the correct answer gravity pulls objects toward earth"
	occluded := "select the correct answer gravity pulls toward earth"
	assert.True(t, IsSubset(full, occluded))
}

func TestIsSubset_FeedbackAppended(t *testing.T) {
	t.Parallel()

	// Feedback appended after answering: the bare question remains a subset
	// of the annotated reference, suppressing a "changed" verdict.
	old := "question ### what color is the sky blue green correct well done"
	new := "question ### what color is the sky blue green"
	assert.True(t, IsSubset(old, new))
	assert.False(t, IsSubset(new, old))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "question # what is # #", Normalize("Question 3:  What is 12+30?"))
	assert.Equal(t, "", Normalize("  \n\t "))
}
