package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/config"
	"github.com/rhuss/mcpchat/pkg/console"
	"github.com/rhuss/mcpchat/pkg/observability"
	"github.com/rhuss/mcpchat/pkg/provider"
	"github.com/rhuss/mcpchat/pkg/tools"
	"github.com/rhuss/mcpchat/pkg/transcript"
	"github.com/rhuss/mcpchat/pkg/transcript/memory"
)

// step is one scripted model answer.
type step struct {
	resp *provider.ProviderResponse
	err  error
}

// scriptedProvider answers requests from a script and records them.
// Requests past the end of the script get a plain "ok" reply.
type scriptedProvider struct {
	mu       sync.Mutex
	steps    []step
	requests []*provider.ProviderRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}
func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) Complete(_ context.Context, req *provider.ProviderRequest) (*provider.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.requests)
	p.requests = append(p.requests, req)
	if idx < len(p.steps) {
		return p.steps[idx].resp, p.steps[idx].err
	}
	return &provider.ProviderResponse{Content: "ok"}, nil
}

func (p *scriptedProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func textReply(content string) step {
	return step{resp: &provider.ProviderResponse{Content: content, FinishReason: "stop"}}
}

func toolReply(content string, calls ...api.ToolCall) step {
	return step{resp: &provider.ProviderResponse{Content: content, ToolCalls: calls, FinishReason: "tool_calls"}}
}

// fakeExecutor is a scripted tool server.
type fakeExecutor struct {
	descs   []api.ToolDescriptor
	outputs map[string]string
	errs    map[string]error
	delays  map[string]time.Duration
	panics  map[string]bool
	blocks  map[string]bool

	// barrier makes every call wait until this many calls are running.
	barrier int
	release chan struct{}

	mu        sync.Mutex
	calls     []string
	active    int
	maxActive int
	arrived   int
	closed    bool
}

var _ tools.ToolExecutor = (*fakeExecutor)(nil)

func (e *fakeExecutor) Tools(_ context.Context) ([]api.ToolDescriptor, error) {
	return e.descs, nil
}

func (e *fakeExecutor) Execute(ctx context.Context, call api.ToolCall) (*tools.ToolResult, error) {
	e.mu.Lock()
	e.calls = append(e.calls, call.Name)
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	if e.barrier > 0 {
		e.arrived++
		if e.arrived == e.barrier {
			close(e.release)
		}
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.mu.Unlock()
	}()

	if e.barrier > 0 {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d := e.delays[call.Name]; d > 0 {
		time.Sleep(d)
	}
	if e.blocks[call.Name] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.panics[call.Name] {
		panic("boom")
	}
	if err := e.errs[call.Name]; err != nil {
		return nil, err
	}
	out, ok := e.outputs[call.Name]
	if !ok {
		out = "result of " + call.Name
	}
	return &tools.ToolResult{CallID: call.ID, Output: out}, nil
}

func (e *fakeExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeExecutor) called() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

var testTools = []api.ToolDescriptor{
	{Name: "list_dir", Description: "List a directory", InputSchema: []byte(`{"type":"object","properties":{"path":{"type":"string"}}}`)},
	{Name: "echo", Description: "Echo text", InputSchema: []byte(`{"type":"object"}`)},
	{Name: "get_time", Description: "Current time", InputSchema: []byte(`{"type":"object"}`)},
}

func newTestManager(t *testing.T, cfg Config, prov provider.Provider, exec *fakeExecutor, input string) (*Manager, *bytes.Buffer) {
	t.Helper()
	if exec.descs == nil {
		exec.descs = testTools
	}
	out := &bytes.Buffer{}
	con := console.NewLines(strings.NewReader(input), out)
	m := NewManager(cfg, prov, exec, con, nil)
	if err := m.LoadTools(context.Background()); err != nil {
		t.Fatalf("LoadTools: %v", err)
	}
	return m, out
}

func roles(history []api.Message) []api.Role {
	out := make([]api.Role, len(history))
	for i, m := range history {
		out[i] = m.Role
	}
	return out
}

func TestProcessQuery_ListFiles(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("", api.ToolCall{ID: "call_1", Name: "list_dir", Arguments: `{"path":"."}`}),
		textReply("The directory contains a.txt and b.txt."),
	}}
	exec := &fakeExecutor{outputs: map[string]string{"list_dir": "a.txt\nb.txt"}}
	m, _ := newTestManager(t, Config{}, prov, exec, "1\n")
	sess := m.NewSession()

	reply, err := m.ProcessQuery(context.Background(), sess, "list files")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "The directory contains a.txt and b.txt." {
		t.Errorf("reply = %q", reply)
	}

	want := []api.Role{api.RoleUser, api.RoleAssistant, api.RoleTool, api.RoleAssistant}
	got := roles(sess.History)
	if len(got) != len(want) {
		t.Fatalf("history roles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("history[%d].Role = %q, want %q", i, got[i], want[i])
		}
	}

	toolMsg := sess.History[2]
	if toolMsg.CallID != "call_1" {
		t.Errorf("tool message call id = %q, want call_1", toolMsg.CallID)
	}
	if toolMsg.Status != api.ToolStatusSuccess {
		t.Errorf("tool message status = %q, want success", toolMsg.Status)
	}
	if toolMsg.Content != "a.txt\nb.txt" {
		t.Errorf("tool message content = %q", toolMsg.Content)
	}

	if len(prov.requests) != 2 {
		t.Fatalf("expected 2 model requests, got %d", len(prov.requests))
	}
	if len(prov.requests[0].Tools) != len(testTools) {
		t.Errorf("first request advertised %d tools, want %d", len(prov.requests[0].Tools), len(testTools))
	}
	second := prov.requests[1].Messages
	if last := second[len(second)-1]; last.Role != "tool" || last.ToolCallID != "call_1" {
		t.Errorf("second request should end with the tool result, got %+v", last)
	}
	if d, ok := sess.Permissions.Lookup("list_dir"); !ok || d != DecisionAllow {
		t.Errorf("expected stored allow for list_dir, got %q, %v", d, ok)
	}
}

func TestProcessQuery_ToolMessagesInCallOrder(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("",
			api.ToolCall{ID: "c1", Name: "list_dir", Arguments: `{}`},
			api.ToolCall{ID: "c2", Name: "echo", Arguments: `{}`},
			api.ToolCall{ID: "c3", Name: "get_time", Arguments: `{}`},
		),
		textReply("done"),
	}}
	// The first call finishes last.
	exec := &fakeExecutor{delays: map[string]time.Duration{
		"list_dir": 60 * time.Millisecond,
		"echo":     30 * time.Millisecond,
	}}
	m, out := newTestManager(t, Config{}, prov, exec, "3\n")
	sess := m.NewSession()

	if _, err := m.ProcessQuery(context.Background(), sess, "do three things"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var toolMsgs []api.Message
	for _, msg := range sess.History {
		if msg.Role == api.RoleTool {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	wantIDs := []string{"c1", "c2", "c3"}
	if len(toolMsgs) != len(wantIDs) {
		t.Fatalf("expected %d tool messages, got %d", len(wantIDs), len(toolMsgs))
	}
	for i, id := range wantIDs {
		if toolMsgs[i].CallID != id {
			t.Errorf("tool message %d call id = %q, want %q", i, toolMsgs[i].CallID, id)
		}
	}

	// Allow-all on the first prompt answers the other two.
	if n := strings.Count(out.String(), "1. Allow tool call:"); n != 1 {
		t.Errorf("expected 1 consent prompt, got %d", n)
	}
	if !sess.Permissions.AllowsAll() {
		t.Error("expected allow-all to be set")
	}
}

func TestProcessQuery_GeneratesMissingCallIDs(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("", api.ToolCall{Name: "echo", Arguments: `{}`}),
		textReply("done"),
	}}
	m, _ := newTestManager(t, Config{}, prov, &fakeExecutor{}, "1\n")
	sess := m.NewSession()

	if _, err := m.ProcessQuery(context.Background(), sess, "echo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := sess.History[1].ToolCalls[0]
	if !api.ValidateCallID(call.ID) {
		t.Errorf("expected generated call id, got %q", call.ID)
	}
	if sess.History[2].CallID != call.ID {
		t.Errorf("tool message call id = %q, want %q", sess.History[2].CallID, call.ID)
	}
}

func TestProcessQuery_Denial(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("", api.ToolCall{ID: "c1", Name: "list_dir", Arguments: `{}`}),
		textReply("I was not allowed to list files."),
		toolReply("", api.ToolCall{ID: "c2", Name: "list_dir", Arguments: `{}`}),
		textReply("Still not allowed."),
	}}
	exec := &fakeExecutor{}
	m, out := newTestManager(t, Config{}, prov, exec, "2\n")
	sess := m.NewSession()

	if _, err := m.ProcessQuery(context.Background(), sess, "list files"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	toolMsg := sess.History[2]
	if toolMsg.Status != api.ToolStatusError {
		t.Errorf("denied call status = %q, want error", toolMsg.Status)
	}
	if toolMsg.Content != "Tool call 'list_dir' denied by user." {
		t.Errorf("denied call content = %q", toolMsg.Content)
	}
	if calls := exec.called(); len(calls) != 0 {
		t.Errorf("denied tool must not run, executor saw %v", calls)
	}

	// The denial persists: no second prompt.
	if _, err := m.ProcessQuery(context.Background(), sess, "list files again"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := strings.Count(out.String(), "2. Deny tool call:"); n != 1 {
		t.Errorf("expected 1 consent prompt, got %d", n)
	}
	if sess.History[6].Status != api.ToolStatusError {
		t.Errorf("second call status = %q, want error", sess.History[6].Status)
	}
}

func TestProcessQuery_ConnectionResetIsRecovered(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("", api.ToolCall{ID: "c1", Name: "list_dir", Arguments: `{}`}),
		textReply("The tool server is unreachable."),
	}}
	exec := &fakeExecutor{errs: map[string]error{"list_dir": errors.New("connection reset")}}
	m, _ := newTestManager(t, Config{}, prov, exec, "1\n")
	sess := m.NewSession()

	reply, err := m.ProcessQuery(context.Background(), sess, "list files")
	if err != nil {
		t.Fatalf("tool failures must not fail the turn: %v", err)
	}
	if reply != "The tool server is unreachable." {
		t.Errorf("reply = %q", reply)
	}
	toolMsg := sess.History[2]
	if toolMsg.Status != api.ToolStatusError {
		t.Errorf("status = %q, want error", toolMsg.Status)
	}
	if !strings.Contains(toolMsg.Content, "connection reset") {
		t.Errorf("content = %q, want it to contain %q", toolMsg.Content, "connection reset")
	}
}

func TestProcessQuery_ModelErrorIsFatal(t *testing.T) {
	backendErr := &provider.BackendError{StatusCode: 500, Message: "backend down"}
	prov := &scriptedProvider{steps: []step{{err: backendErr}}}
	m, _ := newTestManager(t, Config{}, prov, &fakeExecutor{}, "")
	sess := m.NewSession()

	_, err := m.ProcessQuery(context.Background(), sess, "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T", err)
	}
	if apiErr.Kind != api.ErrorKindModelInvocation || !apiErr.Fatal() {
		t.Errorf("kind = %q fatal = %v, want fatal model_invocation", apiErr.Kind, apiErr.Fatal())
	}
	var be *provider.BackendError
	if !errors.As(err, &be) {
		t.Error("expected the backend error to be wrapped")
	}
}

func TestProcessQuery_ToolRoundLimit(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("", api.ToolCall{ID: "c1", Name: "echo", Arguments: `{}`}),
		toolReply("one more", api.ToolCall{ID: "c2", Name: "echo", Arguments: `{}`}),
	}}
	exec := &fakeExecutor{}
	m, _ := newTestManager(t, Config{MaxToolRounds: 1}, prov, exec, "1\n")
	sess := m.NewSession()

	reply, err := m.ProcessQuery(context.Background(), sess, "echo twice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "one more" {
		t.Errorf("reply = %q", reply)
	}
	if len(sess.History) != 5 {
		t.Fatalf("expected 5 messages, got %v", roles(sess.History))
	}
	last := sess.History[4]
	if last.CallID != "c2" || last.Status != api.ToolStatusError || last.Content != toolLimitReached {
		t.Errorf("leftover call answered with %+v", last)
	}
	if calls := exec.called(); len(calls) != 1 {
		t.Errorf("expected 1 executed call, got %v", calls)
	}
	if n := prov.requestCount(); n != 2 {
		t.Errorf("expected 2 model requests, got %d", n)
	}
}

func TestProcessQuery_MultipleToolRounds(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("", api.ToolCall{ID: "c1", Name: "echo", Arguments: `{}`}),
		toolReply("", api.ToolCall{ID: "c2", Name: "get_time", Arguments: `{}`}),
		textReply("finished"),
	}}
	exec := &fakeExecutor{}
	m, _ := newTestManager(t, Config{MaxToolRounds: 3}, prov, exec, "3\n")
	sess := m.NewSession()

	reply, err := m.ProcessQuery(context.Background(), sess, "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "finished" {
		t.Errorf("reply = %q", reply)
	}
	if len(sess.History) != 6 {
		t.Errorf("expected 6 messages, got %v", roles(sess.History))
	}
}

func TestProcessQuery_AllowedToolsRejection(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		toolReply("",
			api.ToolCall{ID: "c1", Name: "list_dir", Arguments: `{}`},
			api.ToolCall{ID: "c2", Name: "echo", Arguments: `{}`},
		),
		textReply("done"),
	}}
	exec := &fakeExecutor{}
	m, out := newTestManager(t, Config{AllowedTools: []string{"echo"}}, prov, exec, "1\n")
	sess := m.NewSession()

	if _, err := m.ProcessQuery(context.Background(), sess, "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(prov.requests[0].Tools); n != 1 {
		t.Errorf("expected 1 advertised tool, got %d", n)
	}
	rejected := sess.History[2]
	if rejected.CallID != "c1" || rejected.Status != api.ToolStatusError {
		t.Errorf("rejected call message = %+v", rejected)
	}
	if !strings.Contains(rejected.Content, "not in the allowed_tools list") {
		t.Errorf("rejected content = %q", rejected.Content)
	}
	if sess.History[3].CallID != "c2" || sess.History[3].Status != api.ToolStatusSuccess {
		t.Errorf("allowed call message = %+v", sess.History[3])
	}
	if strings.Contains(out.String(), "'list_dir'") {
		t.Error("rejected tool must not be prompted for")
	}
}

func TestResolvePermission_InvalidInputReprompts(t *testing.T) {
	m, out := newTestManager(t, Config{}, &scriptedProvider{}, &fakeExecutor{}, "x\n 4 \n 1 \n")
	sess := m.NewSession()

	if !m.ResolvePermission(context.Background(), sess, "echo") {
		t.Fatal("expected permission after answer 1")
	}
	if n := strings.Count(out.String(), "Invalid input. Please enter 1, 2, or 3."); n != 2 {
		t.Errorf("expected 2 invalid input notices, got %d", n)
	}
	// Stored: input is exhausted, so a prompt would deny.
	if !m.ResolvePermission(context.Background(), sess, "echo") {
		t.Error("expected stored allow to apply without prompting")
	}
}

func TestResolvePermission_EOFDenies(t *testing.T) {
	m, _ := newTestManager(t, Config{}, &scriptedProvider{}, &fakeExecutor{}, "")
	sess := m.NewSession()

	if m.ResolvePermission(context.Background(), sess, "echo") {
		t.Error("expected denial at end of input")
	}
	if _, ok := sess.Permissions.Lookup("echo"); ok {
		t.Error("end of input must not store a decision")
	}
}

func TestResolvePermission_AllowAllOverridesDenial(t *testing.T) {
	m, _ := newTestManager(t, Config{}, &scriptedProvider{}, &fakeExecutor{}, "2\n3\n")
	sess := m.NewSession()
	ctx := context.Background()

	if m.ResolvePermission(ctx, sess, "list_dir") {
		t.Fatal("expected denial")
	}
	if !m.ResolvePermission(ctx, sess, "echo") {
		t.Fatal("expected allow-all")
	}
	for _, tool := range []string{"list_dir", "echo", "get_time", "anything"} {
		if !m.ResolvePermission(ctx, sess, tool) {
			t.Errorf("expected %s to be allowed after allow-all", tool)
		}
	}
}

func TestResolvePermission_Metrics(t *testing.T) {
	stored := observability.PermissionDecisionsTotal.WithLabelValues("allow", "stored")
	before := testutil.ToFloat64(stored)

	m, _ := newTestManager(t, Config{}, &scriptedProvider{}, &fakeExecutor{}, "1\n")
	sess := m.NewSession()
	m.ResolvePermission(context.Background(), sess, "echo")
	m.ResolvePermission(context.Background(), sess, "echo")

	if got := testutil.ToFloat64(stored) - before; got != 1 {
		t.Errorf("stored allow decisions = %v, want 1", got)
	}
}

func TestExecuteTool_Timeout(t *testing.T) {
	exec := &fakeExecutor{blocks: map[string]bool{"list_dir": true}}
	m, _ := newTestManager(t, Config{ToolTimeout: 50 * time.Millisecond}, &scriptedProvider{}, exec, "")

	start := time.Now()
	result := m.ExecuteTool(context.Background(), api.ToolCall{ID: "c1", Name: "list_dir"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Output, "timed out") {
		t.Errorf("output = %q", result.Output)
	}
	if result.CallID != "c1" {
		t.Errorf("call id = %q", result.CallID)
	}
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes and reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExecuteTool_TimeoutLoggedOnce(t *testing.T) {
	logs := &lockedBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	exec := &fakeExecutor{blocks: map[string]bool{"list_dir": true}}
	m, _ := newTestManager(t, Config{ToolTimeout: 20 * time.Millisecond}, &scriptedProvider{}, exec, "")
	m.ExecuteTool(context.Background(), api.ToolCall{ID: "c1", Name: "list_dir"})

	// Wait for the abandoned executor call to return as well.
	deadline := time.Now().Add(2 * time.Second)
	for {
		exec.mu.Lock()
		active := exec.active
		exec.mu.Unlock()
		if active == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if n := strings.Count(logs.String(), "tool call timed out"); n != 1 {
		t.Errorf("timeout logged %d times, want 1:\n%s", n, logs.String())
	}
}

func TestExecuteTool_PanicRecovered(t *testing.T) {
	exec := &fakeExecutor{panics: map[string]bool{"echo": true}}
	m, _ := newTestManager(t, Config{}, &scriptedProvider{}, exec, "")

	result := m.ExecuteTool(context.Background(), api.ToolCall{ID: "c1", Name: "echo"})
	if !result.IsError || !strings.Contains(result.Output, "boom") {
		t.Errorf("expected recovered panic as error result, got %+v", result)
	}
}

func TestExecuteTool_Metrics(t *testing.T) {
	failed := observability.ToolExecutionsTotal.WithLabelValues("flaky_tool", "error")
	before := testutil.ToFloat64(failed)

	exec := &fakeExecutor{errs: map[string]error{"flaky_tool": errors.New("connection reset")}}
	m, _ := newTestManager(t, Config{}, &scriptedProvider{}, exec, "")
	m.ExecuteTool(context.Background(), api.ToolCall{ID: "c1", Name: "flaky_tool"})

	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("error executions = %v, want 1", got)
	}
}

func TestRunToolCalls_MaxParallelTools(t *testing.T) {
	calls := []api.ToolCall{
		{ID: "c1", Name: "echo"},
		{ID: "c2", Name: "echo"},
		{ID: "c3", Name: "echo"},
	}

	t.Run("limited", func(t *testing.T) {
		exec := &fakeExecutor{delays: map[string]time.Duration{"echo": 10 * time.Millisecond}}
		m, _ := newTestManager(t, Config{MaxParallelTools: 1}, &scriptedProvider{}, exec, "3\n")
		sess := m.NewSession()

		m.runToolCalls(context.Background(), sess, calls)
		if exec.maxActive != 1 {
			t.Errorf("max concurrent calls = %d, want 1", exec.maxActive)
		}
		if len(sess.History) != 3 {
			t.Errorf("expected 3 tool messages, got %d", len(sess.History))
		}
	})

	t.Run("unbounded", func(t *testing.T) {
		// Every call waits until all three run, which only works concurrently.
		exec := &fakeExecutor{barrier: 3, release: make(chan struct{})}
		m, _ := newTestManager(t, Config{ToolTimeout: 5 * time.Second}, &scriptedProvider{}, exec, "3\n")
		sess := m.NewSession()

		m.runToolCalls(context.Background(), sess, calls)
		if exec.maxActive != 3 {
			t.Errorf("max concurrent calls = %d, want 3", exec.maxActive)
		}
		for i, msg := range sess.History {
			if msg.Status != api.ToolStatusSuccess {
				t.Errorf("message %d status = %q, content %q", i, msg.Status, msg.Content)
			}
		}
	})
}

func fillHistory(sess *Session, n int) {
	for i := 0; i < n; i += 2 {
		sess.History = append(sess.History,
			api.NewUserMessage("question"),
			api.NewAssistantMessage("answer", nil),
		)
	}
}

func TestCompactHistory_AfterThreshold(t *testing.T) {
	prov := &scriptedProvider{steps: []step{
		textReply("latest answer"),
		textReply("The user asked many questions."),
	}}
	store := memory.New(10)
	con := console.NewLines(strings.NewReader(""), &bytes.Buffer{})
	m := NewManager(Config{}, prov, &fakeExecutor{descs: testTools}, con, store)
	sess := m.NewSession()
	fillHistory(sess, 20)

	reply, err := m.ProcessQuery(context.Background(), sess, "one more question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "latest answer" {
		t.Errorf("reply = %q", reply)
	}

	if len(sess.History) != 1 {
		t.Fatalf("expected history length 1, got %d", len(sess.History))
	}
	if sess.History[0].Role != api.RoleSummary || sess.History[0].Content != "The user asked many questions." {
		t.Errorf("summary message = %+v", sess.History[0])
	}
	if len(sess.Summaries) != 1 {
		t.Errorf("expected 1 summary, got %d", len(sess.Summaries))
	}

	summaryReq := prov.requests[1]
	if summaryReq.Tools != nil {
		t.Error("summary request must not carry tools")
	}
	if len(summaryReq.Messages) != 1 || summaryReq.Messages[0].Role != "user" {
		t.Fatalf("summary request messages = %+v", summaryReq.Messages)
	}
	if !strings.HasPrefix(summaryReq.Messages[0].Content, config.DefaultSummaryPrompt) {
		t.Errorf("summary request should start with the summary prompt, got %q", summaryReq.Messages[0].Content)
	}
	if !strings.Contains(summaryReq.Messages[0].Content, "user: one more question") {
		t.Error("summary request should contain the rendered history")
	}

	recs, err := store.Records(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != transcript.KindCompaction || len(recs[0].Messages) != 22 {
		t.Errorf("archived records = %+v", recs)
	}

	// The summary is sent as context on the next turn.
	if _, err := m.ProcessQuery(context.Background(), sess, "next"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := prov.requests[2].Messages[0]
	if first.Role != "system" || first.Content != provider.SummaryPrefix+"The user asked many questions." {
		t.Errorf("first message after compaction = %+v", first)
	}
}

func TestCompactHistory_AtThresholdIsNoop(t *testing.T) {
	prov := &scriptedProvider{}
	m, _ := newTestManager(t, Config{}, prov, &fakeExecutor{}, "")
	sess := m.NewSession()
	fillHistory(sess, 20)

	if err := m.CompactHistory(context.Background(), sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sess.History) != 20 {
		t.Errorf("history length = %d, want 20", len(sess.History))
	}
	if n := prov.requestCount(); n != 0 {
		t.Errorf("expected no model requests, got %d", n)
	}
}

func TestCompactHistory_FailureIsFatal(t *testing.T) {
	prov := &scriptedProvider{steps: []step{{err: errors.New("timeout")}}}
	m, _ := newTestManager(t, Config{CompactionThreshold: 2}, prov, &fakeExecutor{}, "")
	sess := m.NewSession()
	fillHistory(sess, 4)

	err := m.CompactHistory(context.Background(), sess)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != api.ErrorKindModelInvocation {
		t.Fatalf("expected model_invocation error, got %v", err)
	}
	if len(sess.History) != 4 {
		t.Errorf("history must be kept on failure, got %d messages", len(sess.History))
	}
}

func TestRenderHistory(t *testing.T) {
	got := renderHistory([]api.Message{
		api.NewSummaryMessage("earlier"),
		api.NewUserMessage("list files"),
		api.NewAssistantMessage("", []api.ToolCall{{ID: "c1", Name: "list_dir", Arguments: `{"path":"."}`}}),
		api.NewToolMessage("c1", "a.txt", false),
		api.NewAssistantMessage("One file.", nil),
	})
	want := "summary: earlier\n" +
		"user: list files\n" +
		"assistant:  [tool call list_dir({\"path\":\".\"})]\n" +
		"tool (success): a.txt\n" +
		"assistant: One file.\n"
	if got != want {
		t.Errorf("renderHistory() =\n%s\nwant\n%s", got, want)
	}
}
