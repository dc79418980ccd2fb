package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/news-guard/newsguard/internal/factcheck"
)

// JSON-RPC 2.0 request
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSON-RPC 2.0 response
type jsonRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MCP tools/list result
type toolsListResult struct {
	Tools      []mcpTool `json:"tools"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

type mcpTool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string                `json:"type"`
	Properties map[string]schemaProp `json:"properties"`
	Required   []string              `json:"required,omitempty"`
}

type schemaProp struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// MCP tools/call result
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

const protocolVersion = "2024-11-05"

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Capabilities    capabilities `json:"capabilities"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools map[string]interface{} `json:"tools"`
}

// Checker is the fact-check surface the MCP tools call into.
type Checker interface {
	CheckText(ctx context.Context, text string, opts factcheck.Options) (factcheck.Result, error)
	CheckImage(ctx context.Context, imageDataURI string) (factcheck.Result, error)
}

// Server implements MCP JSON-RPC 2.0 over HTTP (tools/list and tools/call).
type Server struct {
	checker Checker
}

// NewServer returns a new MCP server backed by the given checker.
func NewServer(checker Checker) *Server {
	return &Server{checker: checker}
}

// Handler returns the HTTP handler for JSON-RPC requests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveJSONRPC)
}

func (s *Server) serveJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, req.ID, -32700, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, -32600, "Invalid Request")
		return
	}

	var result interface{}
	var rpcErr *rpcError
	switch req.Method {
	case "initialize":
		result = initializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      serverInfo{Name: "newsguard", Version: "1.0.0"},
			Capabilities:    capabilities{Tools: map[string]interface{}{}},
		}
	case "tools/list":
		result, rpcErr = s.handleToolsList()
	case "tools/call":
		result, rpcErr = s.handleToolsCall(r.Context(), req.Params)
	default:
		writeRPCError(w, req.ID, -32601, "Method not found")
		return
	}

	if rpcErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsList() (interface{}, *rpcError) {
	return &toolsListResult{
		Tools: []mcpTool{
			{
				Name:        "check_text",
				Description: "Fact-check a textual claim against current web search results",
				InputSchema: inputSchema{
					Type: "object",
					Properties: map[string]schemaProp{
						"text":         {Type: "string", Description: "Claim or statement to fact-check"},
						"search_query": {Type: "string", Description: "Override for the derived search queries"},
						"max_results":  {Type: "number", Description: "Max search results to use (1-10)"},
					},
					Required: []string{"text"},
				},
			},
			{
				Name:        "check_image",
				Description: "Extract the claim from an image and fact-check it",
				InputSchema: inputSchema{
					Type: "object",
					Properties: map[string]schemaProp{
						"image_base64": {Type: "string", Description: "Image as a data:image/...;base64 URI"},
					},
					Required: []string{"image_base64"},
				},
			},
		},
	}, nil
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, paramsRaw json.RawMessage) (interface{}, *rpcError) {
	var params toolsCallParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return nil, &rpcError{Code: -32602, Message: "Invalid params"}
	}
	switch params.Name {
	case "check_text":
		return s.callCheckText(ctx, params.Arguments)
	case "check_image":
		return s.callCheckImage(ctx, params.Arguments)
	default:
		return nil, &rpcError{Code: -32602, Message: "Unknown tool: " + params.Name}
	}
}

func getStr(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getNum(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

func (s *Server) callCheckText(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	text := getStr(args, "text")
	result, err := s.checker.CheckText(ctx, text, factcheck.Options{
		SearchQuery: getStr(args, "search_query"),
		MaxResults:  getNum(args, "max_results"),
	})
	if err != nil {
		return &toolsCallResult{
			Content: []contentItem{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	return checkResultContent(result)
}

func (s *Server) callCheckImage(ctx context.Context, args map[string]interface{}) (interface{}, *rpcError) {
	imageData := getStr(args, "image_base64")
	result, err := s.checker.CheckImage(ctx, imageData)
	if err != nil {
		return &toolsCallResult{
			Content: []contentItem{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	return checkResultContent(result)
}

// checkResultContent renders a result as JSON text content.
func checkResultContent(result factcheck.Result) (interface{}, *rpcError) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, &rpcError{Code: -32603, Message: "Internal error"}
	}
	return &toolsCallResult{
		Content: []contentItem{{Type: "text", Text: string(raw)}},
		IsError: false,
	}, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
