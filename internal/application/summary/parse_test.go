package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummaryPlanStrict(t *testing.T) {
	raw := `{
		"title": "Storm hits coast",
		"tldr": ["b1", "b2"],
		"summary": "First sentence. Second sentence.",
		"refs": [
			{"sentence": "First sentence.", "sources": [1]},
			{"sentence": "Second sentence.", "sources": [1, 2]}
		]
	}`

	plan, err := ParseSummaryPlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "Storm hits coast", plan.Title)
	assert.Equal(t, []string{"b1", "b2"}, plan.TLDR)
	require.Len(t, plan.Refs, 2)
	assert.Equal(t, []int{1, 2}, plan.Refs[1].Sources)
}

func TestParseSummaryPlanWithSurroundingText(t *testing.T) {
	raw := "Here is the brief:\n```json\n" +
		`{"title": "t", "tldr": ["b"], "summary": "s.", "refs": [{"sentence": "s.", "sources": [1]}]}` +
		"\n```\nHope this helps."

	plan, err := ParseSummaryPlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "t", plan.Title)
	require.Len(t, plan.Refs, 1)
}

func TestParseSummaryPlanLooseVariants(t *testing.T) {
	// sources 为单个数字、字符串数字，字段名变体 id/text/body/bullets
	raw := `{
		"headline": "t",
		"bullets": ["b"],
		"body": "s1. s2.",
		"refs": [
			{"sentence": "s1.", "sources": 1},
			{"text": "s2.", "id": ["2", 3]}
		]
	}`

	plan, err := ParseSummaryPlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "t", plan.Title)
	assert.Equal(t, []string{"b"}, plan.TLDR)
	assert.Equal(t, "s1. s2.", plan.Summary)
	require.Len(t, plan.Refs, 2)
	assert.Equal(t, []int{1}, plan.Refs[0].Sources)
	assert.Equal(t, "s2.", plan.Refs[1].Sentence)
	assert.Equal(t, []int{2, 3}, plan.Refs[1].Sources)
}

func TestParseSummaryPlanEmpty(t *testing.T) {
	_, err := ParseSummaryPlan("   ")
	assert.Error(t, err)

	_, err = ParseSummaryPlan("no json here at all")
	assert.Error(t, err)
}

func TestValidateSummaryPlan(t *testing.T) {
	valid := func() string {
		return `{"title": "t", "tldr": ["b"], "summary": "s.", "refs": [{"sentence": "s.", "sources": [1]}]}`
	}

	plan, err := ParseSummaryPlan(valid())
	require.NoError(t, err)
	assert.NoError(t, ValidateSummaryPlan(plan, 3))

	// 引用越界
	plan.Refs[0].Sources = []int{4}
	assert.Error(t, ValidateSummaryPlan(plan, 3))
	plan.Refs[0].Sources = []int{0}
	assert.Error(t, ValidateSummaryPlan(plan, 3))

	// 缺引用
	plan.Refs = nil
	assert.Error(t, ValidateSummaryPlan(plan, 3))

	plan, _ = ParseSummaryPlan(valid())
	plan.Title = " "
	assert.Error(t, ValidateSummaryPlan(plan, 3))

	plan, _ = ParseSummaryPlan(valid())
	plan.TLDR = nil
	assert.Error(t, ValidateSummaryPlan(plan, 3))

	plan, _ = ParseSummaryPlan(valid())
	plan.Refs[0].Sources = nil
	assert.Error(t, ValidateSummaryPlan(plan, 3))
}
