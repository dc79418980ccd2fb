package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/news-guard/newsguard/internal/factcheck"
)

type fakeChecker struct {
	textResult  factcheck.Result
	textErr     error
	imageResult factcheck.Result
	imageErr    error

	gotText string
	gotOpts factcheck.Options
	gotURI  string
}

func (f *fakeChecker) CheckText(ctx context.Context, text string, opts factcheck.Options) (factcheck.Result, error) {
	f.gotText = text
	f.gotOpts = opts
	return f.textResult, f.textErr
}

func (f *fakeChecker) CheckImage(ctx context.Context, imageDataURI string) (factcheck.Result, error) {
	f.gotURI = imageDataURI
	return f.imageResult, f.imageErr
}

func rpc(t *testing.T, h http.Handler, body string) jsonRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp jsonRPCResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestServer_ToolsList(t *testing.T) {
	s := NewServer(&fakeChecker{})
	resp := rpc(t, s.Handler(), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}

	raw, _ := json.Marshal(resp.Result)
	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("tools = %+v", result.Tools)
	}
	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	if !names["check_text"] || !names["check_image"] {
		t.Errorf("tool names = %v", names)
	}
}

func TestServer_CallCheckText(t *testing.T) {
	fc := &fakeChecker{textResult: factcheck.Result{
		Claim:      "c",
		Verdict:    factcheck.VerdictTrue,
		Confidence: factcheck.ConfidenceHigh,
		Sources:    []factcheck.Source{},
	}}
	s := NewServer(fc)

	resp := rpc(t, s.Handler(), `{"jsonrpc":"2.0","id":2,"method":"tools/call",
		"params":{"name":"check_text","arguments":{"text":"a long enough claim","max_results":3}}}`)
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	if fc.gotText != "a long enough claim" || fc.gotOpts.MaxResults != 3 {
		t.Errorf("call args: text=%q opts=%+v", fc.gotText, fc.gotOpts)
	}

	raw, _ := json.Marshal(resp.Result)
	var result toolsCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.IsError || len(result.Content) != 1 {
		t.Fatalf("result = %+v", result)
	}
	var res factcheck.Result
	if err := json.Unmarshal([]byte(result.Content[0].Text), &res); err != nil {
		t.Fatalf("content not a result: %v", err)
	}
	if res.Verdict != factcheck.VerdictTrue {
		t.Errorf("verdict = %s", res.Verdict)
	}
}

func TestServer_CallCheckText_PreconditionError(t *testing.T) {
	s := NewServer(&fakeChecker{textErr: factcheck.ErrTextTooShort})

	resp := rpc(t, s.Handler(), `{"jsonrpc":"2.0","id":3,"method":"tools/call",
		"params":{"name":"check_text","arguments":{"text":"x"}}}`)
	if resp.Error != nil {
		t.Fatalf("rpc-level error: %+v", resp.Error)
	}

	raw, _ := json.Marshal(resp.Result)
	var result toolsCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.IsError {
		t.Errorf("expected tool error, got %+v", result)
	}
}

func TestServer_Initialize(t *testing.T) {
	s := NewServer(&fakeChecker{})
	resp := rpc(t, s.Handler(), `{"jsonrpc":"2.0","id":7,"method":"initialize"}`)
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ProtocolVersion == "" || result.ServerInfo.Name != "newsguard" {
		t.Errorf("result = %+v", result)
	}
}

func TestServer_UnknownMethod(t *testing.T) {
	s := NewServer(&fakeChecker{})
	resp := rpc(t, s.Handler(), `{"jsonrpc":"2.0","id":4,"method":"resources/list"}`)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestServer_UnknownTool(t *testing.T) {
	s := NewServer(&fakeChecker{})
	resp := rpc(t, s.Handler(), `{"jsonrpc":"2.0","id":5,"method":"tools/call",
		"params":{"name":"nonexistent","arguments":{}}}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestServer_WrongVersion(t *testing.T) {
	s := NewServer(&fakeChecker{})
	resp := rpc(t, s.Handler(), `{"jsonrpc":"1.0","id":6,"method":"tools/list"}`)
	if resp.Error == nil || resp.Error.Code != -32600 {
		t.Errorf("error = %+v", resp.Error)
	}
}
