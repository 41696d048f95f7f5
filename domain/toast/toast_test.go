package toast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRequest_Contains(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		text     string
		want     bool
	}{
		{name: "case_insensitive", expected: "device added", text: "Device Added Successfully", want: true},
		{name: "mismatch", expected: "created successfully", text: "Merchant already exists", want: false},
		{name: "absent_expectation", expected: "", text: "anything", want: true},
		{name: "whitespace_expectation_is_absent", expected: "   ", text: "anything", want: true},
		{name: "expectation_trimmed", expected: " assigned ", text: "Device assigned successfully", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CaptureRequest{ExpectedText: tt.expected}
			assert.Equal(t, tt.want, req.Contains(tt.text))
		})
	}
}

func TestCaptureRequest_NormalizeDefaults(t *testing.T) {
	req := CaptureRequest{}.Normalize()

	assert.Equal(t, DefaultTimeout, req.Timeout)
	require.NotEmpty(t, req.Candidates)
	assert.Equal(t, Selector(SelectorToastifySuccess), req.Candidates[0])

	custom := CaptureRequest{Timeout: time.Second, Candidates: []Strategy{Selector(".x")}}.Normalize()
	assert.Equal(t, time.Second, custom.Timeout)
	assert.Len(t, custom.Candidates, 1)
}

func TestDefaultStrategies_OrderSpecificBeforeGenericBeforeKeyword(t *testing.T) {
	strategies := DefaultStrategies()

	firstKeyword := -1
	roleAlert := -1
	genericToast := -1
	for i, s := range strategies {
		switch {
		case s.Kind == KindKeyword && firstKeyword < 0:
			firstKeyword = i
		case s.Pattern == SelectorRoleAlert:
			roleAlert = i
		case s.Pattern == ".toast":
			genericToast = i
		}
	}

	require.NotEqual(t, -1, firstKeyword)
	assert.Less(t, 0, roleAlert, "framework selectors precede role=alert")
	assert.Less(t, roleAlert, genericToast)
	assert.Less(t, genericToast, firstKeyword)
	for _, s := range strategies[firstKeyword:] {
		assert.Equal(t, KindKeyword, s.Kind, "keywords come last")
	}
	assert.NotContains(t, SelectorsOnly(), Keyword("success"))
}

func TestCaptureResult_Invariants(t *testing.T) {
	req := Expect("device added", time.Second)

	ok := Matched(req, "  Device Added  ", Selector(SelectorToastifySuccess), 20*time.Millisecond)
	assert.True(t, ok.Success)
	assert.Equal(t, "Device Added", ok.Text)
	assert.True(t, ok.ContainsExpected)
	assert.Equal(t, StateMatched, ok.State)

	failed := Failed(FailureTimeout, "no toast", 3*time.Second)
	assert.False(t, failed.Success)
	assert.Empty(t, failed.Text)
	assert.False(t, failed.ContainsExpected)
	assert.Equal(t, StateTimedOut, failed.State)

	notFound := Failed(FailureNotFound, "no toast", time.Second)
	assert.Equal(t, StateUnmatched, notFound.State)
	assert.True(t, notFound.State.IsTerminal())
	assert.False(t, StateExtracting.IsTerminal())
}

func TestCaptureResult_Verdict(t *testing.T) {
	req := Expect("created successfully", time.Second)
	mismatch := Matched(req, "Merchant already exists", Selector(SelectorRoleAlert), 0)
	pass := Matched(req, "Merchant created successfully", Selector(SelectorRoleAlert), 0)
	missing := Failed(FailureNotFound, "none", 0)

	assert.Equal(t, VerdictPass, pass.Verdict(false))
	assert.Equal(t, VerdictFail, mismatch.Verdict(true))
	assert.Equal(t, VerdictWarn, missing.Verdict(true))
	assert.Equal(t, VerdictFail, missing.Verdict(false))
}

func TestCaptureResult_MarshalJSON(t *testing.T) {
	res := Matched(CaptureRequest{}, "Saved", Keyword("saved"), 1500*time.Millisecond)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1500), decoded["elapsed_ms"])
	assert.Equal(t, "text=saved", decoded["matched_selector"])
	assert.Equal(t, true, decoded["contains_expected"])
	assert.Equal(t, "MATCHED", decoded["state"])
}
