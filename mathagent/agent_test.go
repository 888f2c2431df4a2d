package mathagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexusone/agentcore-runtime/bedrock"
)

// scriptedLLM returns canned replies in order.
type scriptedLLM struct {
	replies []bedrock.Message
	calls   []struct {
		system string
		msgs   []bedrock.Message
	}
}

func (s *scriptedLLM) Invoke(_ context.Context, system string, msgs []bedrock.Message, _ []bedrock.ToolSpec) (bedrock.Message, error) {
	s.calls = append(s.calls, struct {
		system string
		msgs   []bedrock.Message
	}{system, msgs})
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func TestAnswerRunsWorkerToolsEvaluator(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		// worker turn 1: requests a tool
		{Role: bedrock.RoleAssistant, ToolCalls: []bedrock.ToolCall{
			{ID: "call-1", Name: "multiply_numbers", Args: map[string]any{"a": 15.0, "b": 3.0}},
		}},
		// worker turn 2: final answer
		{Role: bedrock.RoleAssistant, Content: "The answer is 45."},
		// evaluator
		{Role: bedrock.RoleAssistant, Content: "Approved, 45 is correct."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	res, err := agent.Answer(context.Background(), "What is 15 * 3?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 45.", res.WorkerOutput)
	assert.Equal(t, "Approved, 45 is correct.", res.EvaluationResult)
	assert.Equal(t, "Approved, 45 is correct.", res.FinalAnswer)

	// Tool result was fed back to the worker.
	require.Len(t, llm.calls, 3)
	workerTurn2 := llm.calls[1].msgs
	last := workerTurn2[len(workerTurn2)-1]
	assert.Equal(t, bedrock.RoleTool, last.Role)
	assert.Equal(t, "45", last.Content)
	assert.Equal(t, "call-1", last.ToolCallID)
}

func TestAnswerWithoutToolCallsStillEvaluates(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		{Role: bedrock.RoleAssistant, Content: "2"},
		{Role: bedrock.RoleAssistant, Content: "Correct."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	res, err := agent.Answer(context.Background(), "What is 1 + 1?")
	require.NoError(t, err)
	assert.Equal(t, "2", res.WorkerOutput)
	assert.Equal(t, "Correct.", res.EvaluationResult)
}

func TestStreamUpdatesEmitsNodeEvents(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		{Role: bedrock.RoleAssistant, ToolCalls: []bedrock.ToolCall{
			{ID: "call-1", Name: "add_numbers", Args: map[string]any{"a": 1.0, "b": 2.0}},
		}},
		{Role: bedrock.RoleAssistant, Content: "3"},
		{Role: bedrock.RoleAssistant, Content: "Looks right."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	var nodes []string
	for ev := range agent.Stream(context.Background(), "1+2?", StreamModeUpdates) {
		event, ok := ev.(map[string]any)
		require.True(t, ok)
		nodes = append(nodes, event["node"].(string))
	}
	assert.Equal(t, []string{"worker", "tools", "worker", "evaluator"}, nodes)
}

func TestResultEncodesAnswerUnderResultKey(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		{Role: bedrock.RoleAssistant, Content: "2"},
		{Role: bedrock.RoleAssistant, Content: "Correct."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	res, err := agent.Answer(context.Background(), "What is 1 + 1?")
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"Correct.","worker_output":"2","evaluation_result":"Correct."}`, string(data))
}

func TestStreamUpdatesOmitsSeedQuestion(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		{Role: bedrock.RoleAssistant, Content: "4"},
		{Role: bedrock.RoleAssistant, Content: "Yes."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	stream := agent.Stream(context.Background(), "2+2?", StreamModeUpdates)
	first, ok := (<-stream).(map[string]any)
	require.True(t, ok)

	msgs, ok := first["messages"].([]bedrock.Message)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, bedrock.RoleAssistant, msgs[0].Role)

	for range stream {
	}
}

func TestStreamValuesEmitsFullState(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		{Role: bedrock.RoleAssistant, Content: "4"},
		{Role: bedrock.RoleAssistant, Content: "Yes."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	var last map[string]any
	for ev := range agent.Stream(context.Background(), "2+2?", StreamModeValues) {
		last = ev.(map[string]any)
	}
	require.NotNil(t, last)
	assert.Equal(t, "__values__", last["node"])
	state, ok := last["values"].(State)
	require.True(t, ok)
	assert.Equal(t, "Yes.", state.EvaluationResult)
}

func TestToolExecution(t *testing.T) {
	_, funcs := mathTools()

	tests := []struct {
		tool string
		a, b float64
		want string
	}{
		{"add_numbers", 10, 5, "15"},
		{"subtract_numbers", 10, 5, "5"},
		{"multiply_numbers", 15, 3, "45"},
		{"divide_numbers", 10, 4, "2.5"},
	}
	for _, tt := range tests {
		got, err := funcs[tt.tool](map[string]any{"a": tt.a, "b": tt.b})
		require.NoError(t, err, tt.tool)
		assert.Equal(t, tt.want, got, tt.tool)
	}
}

func TestDivideByZero(t *testing.T) {
	_, funcs := mathTools()
	_, err := funcs["divide_numbers"](map[string]any{"a": 1.0, "b": 0.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "divide by zero")
}

func TestUnknownToolReportedInConversation(t *testing.T) {
	llm := &scriptedLLM{replies: []bedrock.Message{
		{Role: bedrock.RoleAssistant, ToolCalls: []bedrock.ToolCall{
			{ID: "call-1", Name: "square_root", Args: map[string]any{"a": 4.0}},
		}},
		{Role: bedrock.RoleAssistant, Content: "I lack that tool."},
		{Role: bedrock.RoleAssistant, Content: "Noted."},
	}}

	agent, err := newWithLLM(llm)
	require.NoError(t, err)

	_, err = agent.Answer(context.Background(), "sqrt(4)?")
	require.NoError(t, err)

	workerTurn2 := llm.calls[1].msgs
	last := workerTurn2[len(workerTurn2)-1]
	assert.Equal(t, "Tool square_root not found", last.Content)
}
