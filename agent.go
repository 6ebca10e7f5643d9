package discogs

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Live-window compaction: once a thread holds more than liveLimit
// messages after a reply, everything but the last liveKeep is distilled
// into the rolling summary.
const (
	liveLimit = 6
	liveKeep  = 2
)

// defaultMaxIterations bounds the tool-calling loop for one Call.
const defaultMaxIterations = 8

// memoryCapabilities is appended to the operator's system prompt on every
// call, teaching the model when and how to persist facts. The model
// otherwise tends to claim it cannot remember things.
const memoryCapabilities = "### MEMORY CAPABILITIES ###\n" +
	"You are equipped with a long-term memory. You have access to the 'upsert_memory' tool to persist information.\n" +
	"WHEN TO USE IT:\n" +
	"1. User explicitly asks you to remember something (e.g., 'Remember that the WiFi password is 1234').\n" +
	"2. User provides a significant fact that should be known later (e.g., 'Our staging server IP is 10.0.0.50').\n" +
	"3. You learn a user preference (e.g., 'I only code in Python').\n\n" +
	"HOW TO USE IT:\n" +
	"- For user-specific facts/preferences: scope='user', key='preference_name', value='preference_value'\n" +
	"- For server/guild-wide facts (e.g. IPs, rules, schedules): scope='guild', key='fact_name', value='fact_value'\n" +
	"- For channel-specific context: scope='channel', key='context_name', value='context_value'\n\n" +
	"IMPORTANT: Do NOT say you cannot remember things. You CAN. Just use the tool."

// providerError marks an error as originating from a Provider.Chat call,
// so the failover layer can tell a dead model server apart from a broken
// store or tool.
type providerError struct {
	err error
}

func (e *providerError) Error() string { return e.err.Error() }
func (e *providerError) Unwrap() error { return e.err }

// converse runs one full conversation turn against a single provider:
// load checkpoint, agent/tools loop, optional summarization, persist.
func (a *Assistant) converse(ctx context.Context, provider Provider, req CallRequest) (string, error) {
	cp, err := a.checkpoints.Load(ctx, req.ThreadID)
	if err != nil {
		return "", fmt.Errorf("checkpoint load %q: %w", req.ThreadID, err)
	}

	live := append(cp.Messages, buildUserMessage(req))

	registry := NewToolRegistry(a.tools...)
	if a.memoryTool != nil && req.UserID != "" {
		registry.Add(a.memoryTool.Bind(CallScope{
			UserID:    req.UserID,
			GuildID:   req.GuildID,
			ChannelID: req.ChannelID,
		}))
	}
	defs := registry.AllDefinitions()

	memoryBlock := a.recallMemories(ctx, req)

	var final string
	for i := 0; ; i++ {
		chatReq := ChatRequest{
			Messages:    a.promptMessages(cp.Summary, memoryBlock, live),
			Temperature: a.temperature,
			MaxTokens:   a.maxTokens,
		}
		if i < a.maxIterations {
			chatReq.Tools = defs
		}

		start := time.Now()
		resp, err := provider.Chat(ctx, chatReq)
		if err != nil {
			return "", &providerError{err: fmt.Errorf("%s chat: %w", provider.Name(), err)}
		}
		a.logger.Debug("provider responded",
			"provider", provider.Name(),
			"tool_calls", len(resp.ToolCalls),
			"duration", time.Since(start))

		live = append(live, AssistantMessage(resp.Content, resp.ToolCalls...))
		if len(resp.ToolCalls) == 0 || i >= a.maxIterations {
			final = resp.Content
			break
		}

		for _, call := range resp.ToolCalls {
			res, err := registry.Execute(ctx, call.Name, call.Args)
			if err != nil {
				return "", fmt.Errorf("tool %s: %w", call.Name, err)
			}
			content := res.Content
			if res.Error != "" {
				content = res.Error
			}
			a.logger.Debug("tool executed", "tool", call.Name, "failed", res.Error != "")
			live = append(live, ToolResultMessage(call.ID, content))
		}
	}

	summary := cp.Summary
	if len(live) > liveLimit {
		summary, live, err = a.summarize(ctx, provider, summary, live)
		if err != nil {
			return "", err
		}
	}

	cp.Summary = summary
	cp.Messages = live
	cp.UpdatedAt = NowUnix()
	if err := a.checkpoints.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("checkpoint save %q: %w", req.ThreadID, err)
	}
	return final, nil
}

// buildUserMessage folds the reply context in front of the input and
// attaches any images.
func buildUserMessage(req CallRequest) ChatMessage {
	content := req.Input
	if req.RepliedTo != "" {
		content = "previous message being replied to: " + req.RepliedTo + "\n\n" + content
	}
	msg := UserMessage(content)
	msg.Images = req.Images
	return msg
}

// promptMessages rebuilds the full prompt for one model call: system
// instructions (persona + memory capabilities), then the rolling summary,
// then recalled memories, then the live window.
func (a *Assistant) promptMessages(summary, memoryBlock string, live []ChatMessage) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(live)+3)

	var sys strings.Builder
	if a.systemPrompt != "" {
		sys.WriteString(a.systemPrompt)
		sys.WriteString("\n\n")
	}
	sys.WriteString(memoryCapabilities)
	msgs = append(msgs, SystemMessage(sys.String()))

	if summary != "" {
		msgs = append(msgs, SystemMessage("Summary of conversation earlier: "+summary))
	}
	if memoryBlock != "" {
		msgs = append(msgs, SystemMessage(memoryBlock))
	}
	return append(msgs, live...)
}

// recallMemories retrieves the top facts per scope by similarity to the
// current input and formats them as a "Relevant memories:" block. Recall
// is best-effort: any failure logs and yields an empty block.
func (a *Assistant) recallMemories(ctx context.Context, req CallRequest) string {
	if a.memories == nil || a.embedder == nil || req.UserID == "" || req.Input == "" {
		return ""
	}
	vecs, err := a.embedder.Embed(ctx, []string{req.Input})
	if err != nil || len(vecs) == 0 {
		a.logger.Warn("memory recall embedding failed", "error", err)
		return ""
	}
	query := vecs[0]

	type scopePair struct{ scope, id, label string }
	scopes := []scopePair{{ScopeUser, req.UserID, "[User]"}}
	if req.GuildID != "" {
		scopes = append(scopes, scopePair{ScopeGuild, req.GuildID, "[Guild]"})
	}
	if req.ChannelID != "" {
		scopes = append(scopes, scopePair{ScopeChannel, req.ChannelID, "[Channel]"})
	}

	var lines []string
	for _, sp := range scopes {
		facts, err := a.memories.SearchFacts(ctx, sp.scope, sp.id, query, 3)
		if err != nil {
			a.logger.Warn("memory recall failed", "scope", sp.scope, "error", err)
			continue
		}
		for _, f := range facts {
			lines = append(lines, fmt.Sprintf("%s %s: %s", sp.label, f.Fact.Key, f.Fact.Value))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Relevant memories:\n" + strings.Join(lines, "\n")
}

// summarize distills everything but the last liveKeep messages into the
// rolling summary with one provider call.
func (a *Assistant) summarize(ctx context.Context, provider Provider, summary string, live []ChatMessage) (string, []ChatMessage, error) {
	cut := len(live) - liveKeep
	toSummarize := live[:cut]

	prompt := fmt.Sprintf(
		"Distill the following conversation into a concise summary. Include important facts and context.\n\nCurrent summary: %s\n\nNew lines: %s",
		summary, renderTranscript(toSummarize))

	resp, err := provider.Chat(ctx, ChatRequest{
		Messages:    []ChatMessage{UserMessage(prompt)},
		Temperature: a.temperature,
	})
	if err != nil {
		return "", nil, &providerError{err: fmt.Errorf("%s summarize: %w", provider.Name(), err)}
	}
	a.logger.Debug("conversation compacted", "summarized", len(toSummarize), "kept", liveKeep)
	return resp.Content, append([]ChatMessage(nil), live[cut:]...), nil
}

// renderTranscript flattens messages into "role: content" lines for the
// summarization prompt.
func renderTranscript(msgs []ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
