package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skycast/skycast/internal/llm"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "get_geo", "arguments": "{\"city\":\"Paris\"}"}
      }]
    }
  }]
}`

type captured struct {
	path  string
	query string
	body  map[string]interface{}
}

func completionServer(t *testing.T, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&got.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func sampleRequest() llm.Request {
	return llm.Request{
		System: "You are the Geo Agent.",
		Messages: []llm.Message{
			llm.UserMessage("weather in Paris"),
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "transfer_to_geo_agent", Input: map[string]interface{}{}}}},
			llm.ToolResult("call_0", "transfer_to_geo_agent", `{"assistant": "Geo Agent"}`, false),
		},
		Tools: []llm.ToolSpec{{
			Name:        "get_geo",
			Description: "Get geolocation details of a city.",
			InputSchema: llm.ObjectSchema(map[string]interface{}{"city": map[string]interface{}{"type": "string"}}, "city"),
		}},
	}
}

// ─── OpenAI ───────────────────────────────────────────────────────────────────

func TestOpenAIModel_ToolCall(t *testing.T) {
	srv, got := completionServer(t, toolCallCompletion)
	m := llm.NewOpenAIModel(llm.NewOpenAIClient("sk-test", srv.URL+"/v1"), "gpt-4o-mini")

	resp, err := m.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "get_geo" || resp.ToolCalls[0].Input["city"] != "Paris" {
		t.Errorf("tool calls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].ID != "call_1" || resp.StopReason != "tool_calls" {
		t.Errorf("response = %+v", resp)
	}

	if got.path != "/v1/chat/completions" {
		t.Errorf("path = %s", got.path)
	}
	msgs, _ := got.body["messages"].([]interface{})
	if len(msgs) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(msgs))
	}
	if first, _ := msgs[0].(map[string]interface{}); first["role"] != "system" {
		t.Errorf("first message = %v", first)
	}
	if last, _ := msgs[3].(map[string]interface{}); last["role"] != "tool" || last["tool_call_id"] != "call_0" {
		t.Errorf("tool result message = %v", last)
	}
	tools, _ := got.body["tools"].([]interface{})
	if len(tools) != 1 {
		t.Errorf("tools = %v", got.body["tools"])
	}
}

func TestOpenAIModel_PlainText(t *testing.T) {
	srv, _ := completionServer(t, `{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"Hello!"}}]}`)
	m := llm.NewOpenAIModel(llm.NewOpenAIClient("sk-test", srv.URL+"/v1"), "")

	resp, err := m.Complete(context.Background(), llm.Request{Messages: []llm.Message{llm.UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Hello!" || len(resp.ToolCalls) != 0 {
		t.Errorf("response = %+v", resp)
	}
	if !strings.HasPrefix(m.Name(), "openai:") {
		t.Errorf("name = %s", m.Name())
	}
}

func TestOpenAIModel_EmptyChoices(t *testing.T) {
	srv, _ := completionServer(t, `{"choices":[]}`)
	m := llm.NewOpenAIModel(llm.NewOpenAIClient("sk-test", srv.URL+"/v1"), "")

	if _, err := m.Complete(context.Background(), llm.Request{Messages: []llm.Message{llm.UserMessage("hi")}}); err == nil {
		t.Error("expected an error for empty choices")
	}
}

// ─── Azure ────────────────────────────────────────────────────────────────────

func TestAzureClient_UsesDeployment(t *testing.T) {
	srv, got := completionServer(t, toolCallCompletion)
	client := llm.NewAzureClient(llm.AzureConfig{
		Endpoint:   srv.URL + "/",
		Deployment: "weather-gpt",
		APIVersion: "2024-10-21",
		APIKey:     "az-test",
	})
	m := llm.NewOpenAIModel(client, "gpt-4o")

	if _, err := m.Complete(context.Background(), sampleRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.path != "/openai/deployments/weather-gpt/chat/completions" {
		t.Errorf("path = %s", got.path)
	}
	if !strings.Contains(got.query, "api-version=2024-10-21") {
		t.Errorf("query = %s", got.query)
	}
}
