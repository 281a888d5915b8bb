package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"matchpost/backend/internal/services"
	"matchpost/backend/pkg/models"
)

// Server exposes the post-generation workflow as MCP tools so that agent
// clients can drive the same research -> draft -> review loop as the HTTP API.
// All tool calls run as the configured service-account user.
type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowService
	ownerID   string
}

func NewServer(workflows *services.WorkflowService, ownerID string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Matchpost",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
		ownerID:   ownerID,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"generate_post",
			mcp.WithDescription("Start generating a social post about a sports match. Returns a draft and suspends awaiting feedback."),
			mcp.WithString("topic", mcp.Required(), mcp.Description("The match or topic to write about")),
		),
		s.handleGeneratePost,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_feedback",
			mcp.WithDescription("Resume a suspended post workflow with an evaluation of the current draft"),
			mcp.WithString("thread_id", mcp.Required(), mcp.Description("The workflow thread to resume")),
			mcp.WithString("evaluation", mcp.Required(), mcp.Description("One of: post, edit, cancel")),
			mcp.WithString("feedback", mcp.Description("Guidance for the next draft when evaluation is edit")),
		),
		s.handleSubmitFeedback,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_posts",
			mcp.WithDescription("List post workflows, most recently updated first"),
			mcp.WithNumber("limit", mcp.Description("Maximum number of workflows to return")),
		),
		s.handleListPosts,
	)
}

func (s *Server) handleGeneratePost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	topic, ok := args["topic"].(string)
	if !ok || topic == "" {
		return mcp.NewToolResultError("Missing required parameter: topic"), nil
	}

	wf, err := s.workflows.StartWorkflow(ctx, s.ownerID, topic)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate post: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(wf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleSubmitFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	threadID, ok := args["thread_id"].(string)
	if !ok || threadID == "" {
		return mcp.NewToolResultError("Missing required parameter: thread_id"), nil
	}

	evaluation, ok := args["evaluation"].(string)
	if !ok || evaluation == "" {
		return mcp.NewToolResultError("Missing required parameter: evaluation"), nil
	}

	feedback, _ := args["feedback"].(string)

	wf, err := s.workflows.SubmitFeedback(ctx, s.ownerID, threadID, feedback, models.Evaluation(evaluation))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to submit feedback: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(wf)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if n, ok := args["limit"].(float64); ok {
			limit = int(n)
		}
	}

	page, err := s.workflows.ListWorkflows(ctx, s.ownerID, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list posts: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(page)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
