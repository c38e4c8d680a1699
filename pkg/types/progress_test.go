package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProgressEvent_MessageDelta(t *testing.T) {
	ev, err := DecodeProgressEvent([]byte(`{"type":"message_delta","id":"m1","delta":"hello"}`))
	require.NoError(t, err)

	delta, ok := ev.(MessageDelta)
	require.True(t, ok)
	assert.Equal(t, "m1", delta.ID)
	assert.Equal(t, "hello", delta.Delta)
}

func TestDecodeProgressEvent_ToolCallLifecycle(t *testing.T) {
	ev, err := DecodeProgressEvent([]byte(`{"type":"tool_call_started","toolCallID":"t1","title":"Reading file","kind":"read"}`))
	require.NoError(t, err)
	started, ok := ev.(ToolCallStarted)
	require.True(t, ok)
	assert.Equal(t, "t1", started.ToolCallID)
	assert.Equal(t, "Reading file", started.Title)

	ev, err = DecodeProgressEvent([]byte(`{"type":"tool_call_complete","toolCallID":"t1","status":"completed","rawOutput":{"lines":12}}`))
	require.NoError(t, err)
	complete, ok := ev.(ToolCallComplete)
	require.True(t, ok)
	assert.Equal(t, "t1", complete.ToolCallID)
	assert.Equal(t, "completed", complete.Status)
	assert.NotNil(t, complete.RawOutput)
}

func TestDecodeProgressEvent_Plan(t *testing.T) {
	ev, err := DecodeProgressEvent([]byte(`{"type":"plan","entries":[{"content":"Check error handling","status":"pending","priority":"high"}]}`))
	require.NoError(t, err)

	plan, ok := ev.(PlanUpdate)
	require.True(t, ok)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, "Check error handling", plan.Entries[0].Content)
}

func TestDecodeProgressEvent_Terminals(t *testing.T) {
	ev, err := DecodeProgressEvent([]byte(`{"type":"completed","taskCount":3}`))
	require.NoError(t, err)
	assert.True(t, IsTerminal(ev))
	assert.Equal(t, 3, ev.(Completed).TaskCount)

	ev, err = DecodeProgressEvent([]byte(`{"type":"error","message":"agent crashed"}`))
	require.NoError(t, err)
	assert.True(t, IsTerminal(ev))
	assert.Equal(t, "agent crashed", ev.(ErrorEvent).Message)
}

func TestDecodeProgressEvent_NonTerminals(t *testing.T) {
	for _, raw := range []string{
		`{"type":"message_delta","id":"m","delta":"x"}`,
		`{"type":"thought_delta","id":"m","delta":"x"}`,
		`{"type":"log","text":"x"}`,
		`{"type":"task_started","taskID":"t","title":"x"}`,
		`{"type":"task_completed","taskID":"t"}`,
	} {
		ev, err := DecodeProgressEvent([]byte(raw))
		require.NoError(t, err)
		assert.False(t, IsTerminal(ev), raw)
	}
}

func TestDecodeProgressEvent_UnknownTagIsPreserved(t *testing.T) {
	ev, err := DecodeProgressEvent([]byte(`{"type":"telemetry","cpu":0.5}`))
	require.NoError(t, err, "unknown tags are not an error")

	unknown, ok := ev.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "telemetry", unknown.Tag)
	assert.Contains(t, string(unknown.Raw), "cpu")
	assert.False(t, IsTerminal(unknown))
}

func TestDecodeProgressEvent_Invalid(t *testing.T) {
	_, err := DecodeProgressEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeProgressEvent([]byte(`{"delta":"missing type"}`))
	assert.Error(t, err)
}

func TestReviewSource_Title(t *testing.T) {
	pr := &ReviewSource{Kind: SourceGitHubPR, Owner: "acme", Repo: "api", Number: 7}
	assert.Equal(t, "PR acme/api#7", pr.Title())
	assert.True(t, pr.IsPullRequest())

	mr := &ReviewSource{Kind: SourceGitLabMR, ProjectPath: "acme/api", Number: 9}
	assert.Equal(t, "MR acme/api!9", mr.Title())
	assert.True(t, mr.IsPullRequest())

	paste := &ReviewSource{Kind: SourceDiffPaste}
	assert.Equal(t, "AI Review", paste.Title())
	assert.False(t, paste.IsPullRequest())

	var nilSource *ReviewSource
	assert.Equal(t, "AI Review", nilSource.Title())
	assert.False(t, nilSource.IsPullRequest())
}
