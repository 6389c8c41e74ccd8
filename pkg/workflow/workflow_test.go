package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefinitionRejectsUnknownStartAt(t *testing.T) {
	doc := []byte(`{"StartAt":"Missing","States":{"A":{"Type":"Pass","End":true}}}`)
	_, err := ParseDefinition(doc)
	require.Error(t, err)
}

func TestParseDefinitionRejectsUnknownNext(t *testing.T) {
	doc := []byte(`{"StartAt":"A","States":{"A":{"Type":"Pass","Next":"B"}}}`)
	_, err := ParseDefinition(doc)
	require.Error(t, err)
}

func TestParseDefinitionRejectsEndOnChoiceRule(t *testing.T) {
	doc := []byte(`{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Choice","Choices":[{"Variable":"$.x","IsPresent":true,"Next":"B","End":true}],"Default":"B"},
			"B":{"Type":"Pass","End":true}
		}
	}`)
	_, err := ParseDefinition(doc)
	require.Error(t, err)
}

func TestParseDefinitionAccepts(t *testing.T) {
	doc := []byte(`{
		"StartAt":"A",
		"States":{
			"A":{"Type":"Pass","Next":"B","ResultPath":"$.out"},
			"B":{"Type":"Task","Resource":"task://echo","End":true}
		}
	}`)
	def, err := ParseDefinition(doc)
	require.NoError(t, err)
	assert.Equal(t, "A", def.StartAt)
	assert.Len(t, def.States, 2)
}

func TestSelectNextLeafComparator(t *testing.T) {
	st := &State{Choices: []ChoiceRule{
		{Variable: "$.amount", NumericGreaterThan: decPtr("100"), Next: "Big"},
	}, Default: "Small"}

	input := map[string]interface{}{"amount": decimal.NewFromInt(150)}
	next, err := SelectNext(st, input, nil)
	require.NoError(t, err)
	assert.Equal(t, "Big", next)

	input = map[string]interface{}{"amount": decimal.NewFromInt(50)}
	next, err = SelectNext(st, input, nil)
	require.NoError(t, err)
	assert.Equal(t, "Small", next)
}

func TestSelectNextAndCombinator(t *testing.T) {
	st := &State{Choices: []ChoiceRule{
		{And: []ChoiceRule{
			{Variable: "$.a", IsPresent: boolPtr(true)},
			{Variable: "$.b", StringEquals: strPtr("yes")},
		}, Next: "Matched"},
	}, Default: "Unmatched"}

	input := map[string]interface{}{"a": 1, "b": "yes"}
	next, err := SelectNext(st, input, nil)
	require.NoError(t, err)
	assert.Equal(t, "Matched", next)
}

func TestSelectNextNotCombinator(t *testing.T) {
	st := &State{Choices: []ChoiceRule{
		{Not: &ChoiceRule{Variable: "$.flag", IsPresent: boolPtr(true)}, Next: "NoFlag"},
	}, Default: "HasFlag"}

	next, err := SelectNext(st, map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "NoFlag", next)
}

func TestSelectNextIsPresentFalseOnMissing(t *testing.T) {
	st := &State{Choices: []ChoiceRule{
		{Variable: "$.missing", IsPresent: boolPtr(false), Next: "Absent"},
	}, Default: "Present"}

	next, err := SelectNext(st, map[string]interface{}{"other": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Absent", next)
}

func TestSelectNextContextVariable(t *testing.T) {
	st := &State{Choices: []ChoiceRule{
		{Variable: "$$.Execution.Id", IsPresent: boolPtr(true), Next: "HasId"},
	}, Default: "NoId"}

	context := map[string]interface{}{"Execution": map[string]interface{}{"Id": "exec-1"}}
	next, err := SelectNext(st, map[string]interface{}{}, context)
	require.NoError(t, err)
	assert.Equal(t, "HasId", next)
}

func decPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func boolPtr(b bool) *bool     { return &b }
func strPtr(s string) *string { return &s }
