// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the valet command set for conversational operator front
// ends via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/valetops/tagtrack/internal/dayservice"
	"github.com/valetops/tagtrack/internal/tracker"
)

// Server wraps the MCP server with tagtrack tools.
type Server struct {
	mcp     *server.MCPServer
	session *dayservice.Session
}

// New creates an MCP server with all tagtrack tools registered.
func New(session *dayservice.Session) *Server {
	s := &Server{session: session}

	s.mcp = server.NewMCPServer(
		"tagtrack",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("check_in",
		mcp.WithDescription("Check a bike in against a tag. Times follow the input contract "+
			"(HH:MM, HMM, or \"now\"); see the tagtrack://input-format resource."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag identifier, e.g. wa3")),
		mcp.WithString("time", mcp.Description("Check-in time; defaults to now")),
		mcp.WithBoolean("force", mcp.Description("Override hour/future-time range checks")),
	), s.checkIn)

	s.mcp.AddTool(mcp.NewTool("check_out",
		mcp.WithDescription("Check a bike out, closing the tag's open stay."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag identifier, e.g. wa3")),
		mcp.WithString("time", mcp.Description("Check-out time; defaults to now")),
		mcp.WithBoolean("force", mcp.Description("Override future-time range checks")),
	), s.checkOut)

	s.mcp.AddTool(mcp.NewTool("query_tag",
		mcp.WithDescription("List all of a tag's stays today, open and closed."),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag identifier")),
	), s.queryTag)

	s.mcp.AddTool(mcp.NewTool("day_stats",
		mcp.WithDescription("Current occupancy, peak counters, and stay-length statistics for today."),
	), s.dayStats)

	s.mcp.AddTool(mcp.NewTool("audit_report",
		mcp.WithDescription("Colour/category tag inventory matrix for auditing against the physical tag set."),
	), s.auditReport)

	s.mcp.AddResource(
		mcp.NewResource("tagtrack://input-format", "Input Format Contract",
			mcp.WithResourceDescription("Accepted tag and time input forms."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readInputFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func timeArg(req mcp.CallToolRequest) string {
	if t, err := req.RequireString("time"); err == nil && t != "" {
		return t
	}
	return "now"
}

func forceArg(req mcp.CallToolRequest) bool {
	return req.GetBool("force", false)
}

func (s *Server) checkIn(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.session.Apply(tracker.CheckInCmd{Tag: tag, Time: timeArg(req), Force: forceArg(req)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("bike %s checked in at %s (%s)",
		res.Stay.Tag, res.Stay.TimeIn.Format(), res.Stay.BikeType)), nil
}

func (s *Server) checkOut(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.session.Apply(tracker.CheckOutCmd{Tag: tag, Time: timeArg(req), Force: forceArg(req)})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("bike %s checked out at %s, stayed %d min",
		res.Stay.Tag, res.Stay.TimeOut.Format(), res.Stay.Duration())), nil
}

func (s *Server) queryTag(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.session.Apply(tracker.QueryCmd{Tag: tag})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(res.Stays) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no stays for %s today", tag)), nil
	}
	out := ""
	for _, stay := range res.Stays {
		if stay.Open() {
			out += fmt.Sprintf("%s  in %s  still here\n", stay.Tag, stay.TimeIn.Format())
		} else {
			out += fmt.Sprintf("%s  in %s  out %s  (%d min)\n",
				stay.Tag, stay.TimeIn.Format(), stay.TimeOut.Format(), stay.Duration())
		}
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) dayStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.session.Summary(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) auditReport(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.session.Inventory(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readInputFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "tagtrack://input-format",
			MIMEType: "text/markdown",
			Text:     InputFormatContract,
		},
	}, nil
}
