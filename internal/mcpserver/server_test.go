package mcpserver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/valetops/tagtrack/internal/daylog"
	"github.com/valetops/tagtrack/internal/dayservice"
	"github.com/valetops/tagtrack/internal/store"
	"github.com/valetops/tagtrack/internal/tagid"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func testServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	db, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	dlog, err := daylog.New(filepath.Join(dir, "daylogs"))
	if err != nil {
		t.Fatal(err)
	}

	session, err := dayservice.New(dayservice.Config{
		DB:    db,
		Log:   dlog,
		Clock: fixedClock{at: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)},
		LoadContext: func() (*tagid.Context, error) {
			return tagid.NewContext([]string{"wa1", "wa3"}, []string{"ob1"}, nil, "")
		},
		OpenTime:       7*60 + 30,
		CloseTime:      22 * 60,
		BlockMinutes:   30,
		ConfirmMinutes: 30,
	})
	if err != nil {
		t.Fatal(err)
	}

	return New(session)
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func TestCheckInTool(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()

	res, err := srv.checkIn(ctx, toolRequest("check_in", map[string]interface{}{
		"tag": "wa3", "time": "09:14",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "wa3") || !strings.Contains(got, "09:14") {
		t.Errorf("result = %q", got)
	}

	// Double check-in surfaces as a tool error, not a protocol error.
	res, err = srv.checkIn(ctx, toolRequest("check_in", map[string]interface{}{
		"tag": "wa3", "time": "10:00",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error for double check-in")
	}
}

func TestCheckOutTool(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()

	if _, err := srv.checkIn(ctx, toolRequest("check_in", map[string]interface{}{
		"tag": "wa3", "time": "09:14",
	})); err != nil {
		t.Fatal(err)
	}

	res, err := srv.checkOut(ctx, toolRequest("check_out", map[string]interface{}{
		"tag": "wa3", "time": "11:02",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "108 min") {
		t.Errorf("result = %q", got)
	}
}

func TestQueryTagTool(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()

	res, err := srv.queryTag(ctx, toolRequest("query_tag", map[string]interface{}{"tag": "wa1"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !strings.Contains(got, "no stays") {
		t.Errorf("result = %q", got)
	}

	if _, err := srv.checkIn(ctx, toolRequest("check_in", map[string]interface{}{
		"tag": "wa1", "time": "10:00",
	})); err != nil {
		t.Fatal(err)
	}

	res, err = srv.queryTag(ctx, toolRequest("query_tag", map[string]interface{}{"tag": "wa1"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !strings.Contains(got, "still here") {
		t.Errorf("result = %q", got)
	}
}

func TestDayStatsTool(t *testing.T) {
	srv := testServer(t)
	ctx := context.Background()

	res, err := srv.dayStats(ctx, toolRequest("day_stats", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !strings.Contains(got, "totals") {
		t.Errorf("result = %q", got)
	}
}

func TestInputFormatResource(t *testing.T) {
	srv := testServer(t)

	contents, err := srv.readInputFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("unexpected contents type %T", contents[0])
	}
	if !strings.Contains(text.Text, "now") {
		t.Error("contract should document the now keyword")
	}
}
