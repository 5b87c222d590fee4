package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_EmptyIsValid(t *testing.T) {
	r := &Report{}
	assert.True(t, r.Valid())
	assert.NoError(t, r.ToError())
}

func TestReport_AddError(t *testing.T) {
	r := &Report{}
	r.AddError("s1", "kwargs", ErrCodeConfig, "kwargs is not a mapping")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "s1", r.Errors[0].Document)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
	assert.Equal(t, "error s1:kwargs: kwargs is not a mapping", r.Errors[0].String())
}

func TestReport_WarningsStayValid(t *testing.T) {
	r := &Report{}
	r.AddWarning("s2", "", ErrCodeConfig, "duplicate order")
	assert.True(t, r.Valid())
	assert.Len(t, r.Lines(), 1)
}

func TestReport_Merge(t *testing.T) {
	a := &Report{}
	a.AddError("s1", "", ErrCodeConfig, "one")
	b := &Report{}
	b.AddError("s2", "", ErrCodeValidation, "two")
	b.AddWarning("s3", "", ErrCodeConfig, "three")

	a.Merge(b)
	a.Merge(nil)
	assert.Len(t, a.Errors, 2)
	assert.Len(t, a.Warnings, 1)
}

func TestReport_ToError(t *testing.T) {
	r := &Report{}
	r.AddError("s1", "action", ErrCodeConfig, "unknown action")
	err := r.ToError()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeConfig))

	r.AddError("s2", "", ErrCodeValidation, "bad")
	err = r.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 issues")
}

func TestCanonicalAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		ok   bool
	}{
		{"read", ActionRead, true},
		{"reads", ActionRead, true},
		{"SENDS", ActionSend, true},
		{" write ", ActionWrite, true},
		{"process", ActionManipulate, true},
		{"explode", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := CanonicalAction(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScenarioError_Chain(t *testing.T) {
	inner := NewError(ErrCodeReference, "reference \"$a.b\" not found")
	outer := NewErrorf(ErrCodeStepFailed, "step failed").WithStep("step_2 (bot/read)").WithCause(inner)

	assert.Equal(t, "[STEP_FAILED] step_2 (bot/read): step failed", outer.Error())
	assert.True(t, IsCode(outer, ErrCodeReference))
	assert.True(t, IsCode(outer, ErrCodeStepFailed))
	assert.False(t, IsCode(outer, ErrCodeConfig))
	assert.Equal(t, ErrCodeStepFailed, CodeOf(outer))
	assert.Equal(t, "", CodeOf(nil))
}
