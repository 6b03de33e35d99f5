// ABOUTME: Tests for the goal-like message classifier.
// ABOUTME: Covers verb detection, length gating, polite phrasing, and edge inputs.

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoalLike_ActionVerbWithLongContent(t *testing.T) {
	assert.True(t, GoalLike("implement a retry policy for the upload worker"))
	assert.True(t, GoalLike("Build the quarterly report pipeline end to end"))
}

func TestGoalLike_ShortWithPolitePhrase(t *testing.T) {
	// 20 chars or fewer, so the polite phrasing is what qualifies them.
	assert.True(t, GoalLike("please fix the bug"))
	assert.True(t, GoalLike("can you add tests"))
}

func TestGoalLike_ShortWithoutPolitePhrase(t *testing.T) {
	assert.False(t, GoalLike("fix the bug"))
	assert.False(t, GoalLike("update deps"))
}

func TestGoalLike_NoActionVerb(t *testing.T) {
	assert.False(t, GoalLike("what is the capital of France and why does it matter"))
	assert.False(t, GoalLike("could you tell me about the weather today please"))
}

func TestGoalLike_VerbMatchesWholeWordsOnly(t *testing.T) {
	// "prefix" contains "fix" but is not an action verb.
	assert.False(t, GoalLike("the prefix handling in that parser is strange to me"))
	// Punctuation around the verb still matches.
	assert.True(t, GoalLike("when you get a chance: fix, then redeploy everything."))
}

func TestGoalLike_CaseInsensitive(t *testing.T) {
	assert.True(t, GoalLike("PLEASE CREATE a dashboard"))
}

func TestGoalLike_EmptyAndWhitespace(t *testing.T) {
	assert.False(t, GoalLike(""))
	assert.False(t, GoalLike("   \n\t  "))
}
