package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/console"
	"github.com/rhuss/mcpchat/pkg/logging"
	"github.com/rhuss/mcpchat/pkg/observability"
	"github.com/rhuss/mcpchat/pkg/provider"
	"github.com/rhuss/mcpchat/pkg/tools"
	"github.com/rhuss/mcpchat/pkg/transcript"
)

const separator = "**************************************************"

// toolLimitReached answers tool calls left over after the last tool round.
const toolLimitReached = "tool call limit reached"

// Manager runs chat sessions against one model and one tool server.
type Manager struct {
	cfg      Config
	provider provider.Provider
	executor tools.ToolExecutor
	console  console.Console
	store    transcript.Store

	// catalog is the tool list advertised to the model.
	catalog []provider.ProviderTool
}

// NewManager creates a Manager. A nil store discards archived history.
func NewManager(cfg Config, p provider.Provider, exec tools.ToolExecutor, con console.Console, store transcript.Store) *Manager {
	if store == nil {
		store = transcript.Discard{}
	}
	return &Manager{
		cfg:      cfg,
		provider: p,
		executor: exec,
		console:  con,
		store:    store,
	}
}

// LoadTools fetches the tool catalog from the executor and keeps the tools
// allowed by configuration.
func (m *Manager) LoadTools(ctx context.Context) error {
	descs, err := m.executor.Tools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools: %w", err)
	}
	descs = tools.FilterDescriptors(descs, m.cfg.AllowedTools)

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	slog.Info("available tools", "tools", names)

	m.catalog = provider.ToolsFromDescriptors(descs)
	return nil
}

// NewSession creates a session with the configured compaction threshold.
func (m *Manager) NewSession() *Session {
	return New(m.cfg.threshold())
}

// ProcessQuery runs one conversation turn and returns the final assistant
// text. Tool failures and denials are fed back to the model; only model
// failures are returned, as api.Error of kind model_invocation.
func (m *Manager) ProcessQuery(ctx context.Context, sess *Session, text string) (string, error) {
	m.appendMessages(sess, api.NewUserMessage(text))

	reply, err := m.complete(ctx, sess.History, m.catalog)
	if err != nil {
		return "", api.NewModelInvocationError("chat model request failed", err)
	}
	m.appendMessages(sess, reply)

	for round := 0; reply.HasToolCalls(); round++ {
		if round >= m.cfg.maxRounds() {
			slog.Warn("tool round limit reached",
				"session", sess.ID,
				"rounds", round,
				"pending_calls", len(reply.ToolCalls),
			)
			for _, call := range reply.ToolCalls {
				m.appendMessages(sess, tools.ErrorResult(call.ID, toolLimitReached).Message())
			}
			break
		}

		if reply.Content != "" {
			m.say(reply.Content)
		}
		m.runToolCalls(ctx, sess, reply.ToolCalls)

		reply, err = m.complete(ctx, sess.History, m.catalog)
		if err != nil {
			return "", api.NewModelInvocationError("chat model request failed", err)
		}
		m.appendMessages(sess, reply)
	}

	if err := m.CompactHistory(ctx, sess); err != nil {
		return reply.Content, err
	}
	return reply.Content, nil
}

// runToolCalls resolves permissions in call order, executes the permitted
// calls concurrently and appends one tool message per call in call order.
func (m *Manager) runToolCalls(ctx context.Context, sess *Session, calls []api.ToolCall) {
	results := make([]*tools.ToolResult, len(calls))

	filtered := tools.FilterAllowedTools(calls, m.cfg.AllowedTools)
	rejected := make(map[string]tools.ToolResult, len(filtered.Rejected))
	for _, r := range filtered.Rejected {
		rejected[r.CallID] = r
	}

	// Consent is interactive, so it runs sequentially before any execution.
	var permitted []int
	for i, call := range calls {
		if r, ok := rejected[call.ID]; ok {
			results[i] = &r
			continue
		}
		if !m.ResolvePermission(ctx, sess, call.Name) {
			denied := api.NewPermissionDeniedError(call.Name)
			slog.Info(denied.Message, "session", sess.ID, "call_id", call.ID)
			results[i] = tools.ErrorResult(call.ID, "%s", denied.Message)
			continue
		}
		permitted = append(permitted, i)
	}

	var g errgroup.Group
	if m.cfg.MaxParallelTools > 0 {
		g.SetLimit(m.cfg.MaxParallelTools)
	}
	for _, idx := range permitted {
		g.Go(func() error {
			results[idx] = m.ExecuteTool(ctx, calls[idx])
			return nil
		})
	}
	_ = g.Wait()

	msgs := make([]api.Message, len(results))
	for i, r := range results {
		msgs[i] = r.Message()
	}
	m.appendMessages(sess, msgs...)
}

// ResolvePermission reports whether tool may run. A stored decision or
// allow-all answers without prompting; otherwise the user is asked until
// a valid answer arrives. End of input denies the call.
func (m *Manager) ResolvePermission(ctx context.Context, sess *Session, tool string) bool {
	if d, ok := sess.Permissions.Lookup(tool); ok {
		observability.PermissionDecisionsTotal.WithLabelValues(string(d), "stored").Inc()
		return d == DecisionAllow
	}

	for {
		if ctx.Err() != nil {
			observability.PermissionDecisionsTotal.WithLabelValues(string(DecisionDeny), "prompt").Inc()
			return false
		}

		fmt.Fprintf(m.console, "1. Allow tool call: '%s'.\n2. Deny tool call: '%s'.\n3. Allow all tool calls in this session.\n", tool, tool)
		answer, err := m.console.ReadLine("")
		if err != nil {
			slog.Info("no consent answer, denying tool call", "tool", tool, "error", err)
			observability.PermissionDecisionsTotal.WithLabelValues(string(DecisionDeny), "prompt").Inc()
			return false
		}

		var d Decision
		switch strings.TrimSpace(answer) {
		case answerAllow:
			d = DecisionAllow
			sess.Permissions.Set(tool, d)
		case answerDeny:
			d = DecisionDeny
			sess.Permissions.Set(tool, d)
		case answerAllowAll:
			d = DecisionAllow
			sess.Permissions.AllowAll()
		default:
			fmt.Fprintln(m.console, "Invalid input. Please enter 1, 2, or 3.")
			continue
		}

		logging.Log("session", "permission decision", "tool", tool, "decision", d, "allow_all", sess.Permissions.AllowsAll())
		observability.PermissionDecisionsTotal.WithLabelValues(string(d), "prompt").Inc()
		return d == DecisionAllow
	}
}

// ExecuteTool runs call within the tool timeout. It never fails: errors,
// timeouts and panics of the executor become error-status results.
func (m *Manager) ExecuteTool(ctx context.Context, call api.ToolCall) *tools.ToolResult {
	start := time.Now()
	slog.Info("calling tool", "tool", call.Name, "call_id", call.ID, "arguments", logging.Truncate(call.Arguments, 200))

	result := m.executeWithTimeout(ctx, call)

	status := "success"
	if result.IsError {
		status = "error"
	}
	observability.ToolExecutionsTotal.WithLabelValues(call.Name, status).Inc()
	observability.ToolDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())

	slog.Info("tool returned",
		"tool", call.Name,
		"call_id", call.ID,
		"status", status,
		"duration", time.Since(start),
	)
	if logging.TraceIsEnabled("tools") {
		logging.Trace("tools", "tool output", "call_id", call.ID, "output", result.Output)
	}
	return result
}

func (m *Manager) executeWithTimeout(ctx context.Context, call api.ToolCall) *tools.ToolResult {
	if m.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ToolTimeout)
		defer cancel()
	}

	done := make(chan *tools.ToolResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("tool executor panicked", "tool", call.Name, "call_id", call.ID, "panic", r)
				done <- tools.ErrorResult(call.ID, "tool %q failed: panic: %v", call.Name, r)
			}
		}()
		done <- m.execute(ctx, call)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("tool call timed out", "tool", call.Name, "call_id", call.ID, "timeout", m.cfg.ToolTimeout)
		}
		return m.interrupted(ctx, call)
	}
}

func (m *Manager) execute(ctx context.Context, call api.ToolCall) *tools.ToolResult {
	result, err := m.executor.Execute(ctx, call)
	if ctx.Err() != nil {
		return m.interrupted(ctx, call)
	}
	if err != nil {
		toolErr := api.NewToolExecutionError(call.Name, err)
		slog.Warn("tool execution error", "call_id", call.ID, "error", toolErr)
		return tools.ErrorResult(call.ID, "%v", err)
	}
	if result == nil {
		return tools.ErrorResult(call.ID, "tool %q returned no result", call.Name)
	}
	result.CallID = call.ID
	return result
}

func (m *Manager) interrupted(ctx context.Context, call api.ToolCall) *tools.ToolResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return tools.ErrorResult(call.ID, "tool %q timed out after %s", call.Name, m.cfg.ToolTimeout)
	}
	return tools.ErrorResult(call.ID, "tool %q cancelled: %v", call.Name, ctx.Err())
}

// CompactHistory replaces the history with a model-written summary once it
// holds more than the session threshold. The replaced messages are archived.
func (m *Manager) CompactHistory(ctx context.Context, sess *Session) error {
	if len(sess.History) <= sess.Threshold {
		return nil
	}

	m.say("")
	slog.Info("compacting conversation history", "session", sess.ID, "messages", len(sess.History))

	prompt := m.cfg.summaryPrompt() + "\n\n" + renderHistory(sess.History)
	reply, err := m.complete(ctx, []api.Message{api.NewUserMessage(prompt)}, nil)
	if err != nil {
		observability.CompactionsTotal.WithLabelValues("error").Inc()
		return api.NewModelInvocationError("history compaction failed", err)
	}

	replaced := sess.History
	sess.Summaries = append(sess.Summaries, reply.Content)
	m.archive(ctx, sess, transcript.KindCompaction, reply.Content, replaced)

	sess.History = nil
	m.appendMessages(sess, api.NewSummaryMessage(reply.Content))
	observability.CompactionsTotal.WithLabelValues("ok").Inc()
	logging.Log("session", "history compacted", "session", sess.ID, "replaced", len(replaced), "summary", logging.Truncate(reply.Content, 200))
	return nil
}

// Loop reads queries until the user exits or input ends. A fatal error is
// shown to the user and returned.
func (m *Manager) Loop(ctx context.Context, sess *Session) error {
	slog.Info("starting chat loop", "session", sess.ID)
	for {
		if ctx.Err() != nil {
			slog.Info("chat loop cancelled", "session", sess.ID)
			return nil
		}

		fmt.Fprintln(m.console, separator)
		line, err := m.console.ReadLine(m.cfg.Prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, console.ErrInterrupt) {
				slog.Info("input closed, exiting chat loop", "session", sess.ID)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if isExit(query) {
			slog.Info("exiting chat loop", "session", sess.ID)
			return nil
		}

		reply, err := m.ProcessQuery(ctx, sess, query)
		if reply != "" {
			m.say(reply)
		}
		if err != nil {
			slog.Error("session failed", "session", sess.ID, "error", err)
			fmt.Fprintf(m.console, "Error: %v\n", err)
			return err
		}
	}
}

// CloseSession archives the history left at the end of the session.
func (m *Manager) CloseSession(ctx context.Context, sess *Session) {
	if len(sess.History) > 0 {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		m.archive(ctx, sess, transcript.KindFinal, "", sess.History)
	}
	observability.HistoryMessages.Set(0)
	slog.Info("session closed",
		"session", sess.ID,
		"messages", len(sess.History),
		"compactions", len(sess.Summaries),
		"duration", time.Since(sess.CreatedAt),
	)
}

// complete sends history to the model and returns the reply as an
// assistant message.
func (m *Manager) complete(ctx context.Context, history []api.Message, catalog []provider.ProviderTool) (api.Message, error) {
	if m.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ModelTimeout)
		defer cancel()
	}

	req := &provider.ProviderRequest{
		Model:    m.cfg.Model,
		Messages: provider.FromHistory(history),
		Tools:    catalog,
	}
	logging.Log("providers", "model request", "model", req.Model, "messages", len(req.Messages), "tools", len(req.Tools))

	resp, err := m.provider.Complete(ctx, req)
	if err != nil {
		return api.Message{}, err
	}
	resp.ToolCalls = provider.EnsureCallIDs(resp.ToolCalls)

	logging.Log("providers", "model response",
		"model", resp.Model,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"content", logging.Truncate(resp.Content, 200),
	)
	return resp.AssistantMessage(), nil
}

func (m *Manager) archive(ctx context.Context, sess *Session, kind transcript.Kind, summary string, msgs []api.Message) {
	rec := transcript.Record{
		SessionID: sess.ID,
		Seq:       sess.nextSeq(),
		Kind:      kind,
		Summary:   summary,
		Messages:  append([]api.Message(nil), msgs...),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Archive(ctx, rec); err != nil {
		slog.Warn("failed to archive transcript", "session", sess.ID, "seq", rec.Seq, "kind", kind, "error", err)
	}
}

func (m *Manager) appendMessages(sess *Session, msgs ...api.Message) {
	sess.History = append(sess.History, msgs...)
	observability.HistoryMessages.Set(float64(len(sess.History)))
}

// say prints text between separators. An empty text prints only the separator.
func (m *Manager) say(text string) {
	fmt.Fprintln(m.console, separator)
	if text != "" {
		fmt.Fprintln(m.console, text)
	}
}

func isExit(query string) bool {
	switch strings.ToLower(query) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

// renderHistory formats history as plain text for the summary request.
func renderHistory(history []api.Message) string {
	var b strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case api.RoleAssistant:
			fmt.Fprintf(&b, "assistant: %s", msg.Content)
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(&b, " [tool call %s(%s)]", call.Name, call.Arguments)
			}
		case api.RoleTool:
			fmt.Fprintf(&b, "tool (%s): %s", msg.Status, msg.Content)
		default:
			fmt.Fprintf(&b, "%s: %s", msg.Role, msg.Content)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
