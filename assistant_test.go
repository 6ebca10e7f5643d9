package discogs

import (
	"context"
	"strings"
	"sync"
	"testing"
)

func newTestAssistant(t *testing.T, ring *ProviderRing, opts ...AssistantOption) *Assistant {
	t.Helper()
	a, err := NewAssistant(ring, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestCall_HappyPath(t *testing.T) {
	stub := &stubProvider{results: []stubResult{{resp: ChatResponse{Content: "hello there"}}}}
	a := newTestAssistant(t, NewProviderRing(stub))

	got := a.Call(context.Background(), CallRequest{Input: "hi", ThreadID: "t1", UserID: "u1"})
	if got != "hello there" {
		t.Fatalf("reply = %q, want %q", got, "hello there")
	}
	if stub.calls != 1 {
		t.Errorf("provider calls = %d, want 1", stub.calls)
	}
}

func TestCall_ConnectivityFailureRotatesOnceAndRetries(t *testing.T) {
	dead := &stubProvider{name: "local", results: []stubResult{{err: connErr()}}}
	alive := &stubProvider{name: "hosted", results: []stubResult{{resp: ChatResponse{Content: "rescued"}}}}
	ring := NewProviderRing(dead, alive)
	a := newTestAssistant(t, ring)

	got := a.Call(context.Background(), CallRequest{Input: "hi", ThreadID: "t1", UserID: "u1"})
	if got != "rescued" {
		t.Fatalf("reply = %q, want %q", got, "rescued")
	}
	if ring.Current().Name() != "hosted" {
		t.Errorf("ring head = %q, want rotation to persist", ring.Current().Name())
	}
	// The next call goes straight to the rotated head.
	a.Call(context.Background(), CallRequest{Input: "again", ThreadID: "t1", UserID: "u1"})
	if dead.calls != 1 {
		t.Errorf("dead provider calls = %d, want 1", dead.calls)
	}
}

func TestCall_SecondFailureIsTerminal(t *testing.T) {
	deadA := &stubProvider{name: "a", results: []stubResult{{err: connErr()}}}
	deadB := &stubProvider{name: "b", results: []stubResult{{err: connErr()}}}
	spare := &stubProvider{name: "c"}
	ring := NewProviderRing(deadA, deadB, spare)
	a := newTestAssistant(t, ring)

	got := a.Call(context.Background(), CallRequest{Input: "hi", ThreadID: "t1", UserID: "u1"})
	if got != AIError {
		t.Fatalf("reply = %q, want %q", got, AIError)
	}
	// Exactly one rotation: the spare provider is never consulted.
	if spare.calls != 0 {
		t.Errorf("third provider calls = %d, want 0", spare.calls)
	}
	if ring.Current().Name() != "b" {
		t.Errorf("ring head = %q, want %q", ring.Current().Name(), "b")
	}
}

func TestCall_NonConnectivityFailureDoesNotRotate(t *testing.T) {
	failing := &stubProvider{name: "a", results: []stubResult{{err: &ErrHTTP{Status: 500, Body: "boom"}}}}
	spare := &stubProvider{name: "b"}
	ring := NewProviderRing(failing, spare)
	a := newTestAssistant(t, ring)

	got := a.Call(context.Background(), CallRequest{Input: "hi", ThreadID: "t1", UserID: "u1"})
	if got != AIError {
		t.Fatalf("reply = %q, want %q", got, AIError)
	}
	if spare.calls != 0 {
		t.Errorf("spare provider calls = %d, want 0", spare.calls)
	}
	if ring.Current().Name() != "a" {
		t.Errorf("ring head = %q, want no rotation", ring.Current().Name())
	}
}

func TestCall_StoreFailureDoesNotRotate(t *testing.T) {
	// The store failure wraps a dial error, but it is not a provider
	// failure, so the ring must not rotate.
	stub := &stubProvider{name: "a"}
	spare := &stubProvider{name: "b"}
	ring := NewProviderRing(stub, spare)
	a := newTestAssistant(t, ring, WithStores(failingCheckpoints{err: connErr()}, nil))

	got := a.Call(context.Background(), CallRequest{Input: "hi", ThreadID: "t1", UserID: "u1"})
	if got != AIError {
		t.Fatalf("reply = %q, want %q", got, AIError)
	}
	if ring.Current().Name() != "a" {
		t.Errorf("ring head = %q, want no rotation", ring.Current().Name())
	}
}

func TestCall_ToolLoop(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{ToolCalls: []ToolCall{{ID: "c1", Name: "web_research", Args: []byte(`{"query":"go"}`)}}}},
		{resp: ChatResponse{Content: "answer using tool output"}},
	}}
	tool := &echoTool{defs: []ToolDefinition{{Name: "web_research", Description: "search"}}}
	a := newTestAssistant(t, NewProviderRing(stub), WithTools(tool))

	got := a.Call(context.Background(), CallRequest{Input: "research go", ThreadID: "t1", UserID: "u1"})
	if got != "answer using tool output" {
		t.Fatalf("reply = %q", got)
	}
	if len(tool.calls) != 1 || tool.calls[0] != "web_research" {
		t.Errorf("tool calls = %v, want one web_research", tool.calls)
	}
	// Second request must include the tool result message.
	second := stub.reqs[1]
	var sawToolMsg bool
	for _, m := range second.Messages {
		if m.Role == RoleTool && m.ToolCallID == "c1" {
			sawToolMsg = true
		}
	}
	if !sawToolMsg {
		t.Error("second provider request missing tool result message")
	}
}

// loopingProvider requests the tool again for as long as tools are
// offered, and only answers once they are withheld.
type loopingProvider struct {
	mu    sync.Mutex
	calls int
	reqs  []ChatRequest
}

func (p *loopingProvider) Name() string { return "looper" }

func (p *loopingProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.reqs = append(p.reqs, req)
	if len(req.Tools) > 0 {
		return ChatResponse{ToolCalls: []ToolCall{{ID: "c", Name: "web_research", Args: []byte(`{}`)}}}, nil
	}
	return ChatResponse{Content: "forced final answer"}, nil
}

func TestCall_ToolLoopIterationCap(t *testing.T) {
	p := &loopingProvider{}
	tool := &echoTool{defs: []ToolDefinition{{Name: "web_research", Description: "search"}}}
	a := newTestAssistant(t, NewProviderRing(p),
		WithTools(tool), WithMaxToolIterations(2))

	got := a.Call(context.Background(), CallRequest{Input: "dig in", ThreadID: "t1", UserID: "u1"})
	if got != "forced final answer" {
		t.Fatalf("reply = %q", got)
	}
	// Two capped iterations with tools, then exactly one closing call.
	if p.calls != 3 {
		t.Errorf("provider calls = %d, want 3", p.calls)
	}
	if len(tool.calls) != 2 {
		t.Errorf("tool executions = %d, want 2", len(tool.calls))
	}
	last := p.reqs[len(p.reqs)-1]
	if len(last.Tools) != 0 {
		t.Errorf("final request still offers %d tools, want none", len(last.Tools))
	}
}

func TestCall_CompactionAfterSixLiveMessages(t *testing.T) {
	// Three turns of user+assistant fill the window to 6; the fourth turn
	// pushes it past the limit and triggers compaction.
	var results []stubResult
	for i := 0; i < 4; i++ {
		results = append(results, stubResult{resp: ChatResponse{Content: "reply"}})
	}
	results = append(results, stubResult{resp: ChatResponse{Content: "the distilled summary"}})
	stub := &stubProvider{results: results}
	cps := NewMemoryCheckpoints()
	a := newTestAssistant(t, NewProviderRing(stub), WithStores(cps, nil))

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		a.Call(ctx, CallRequest{Input: "turn", ThreadID: "t1", UserID: "u1"})
	}

	cp, err := cps.Load(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cp.Messages) != liveKeep {
		t.Fatalf("live messages after compaction = %d, want %d", len(cp.Messages), liveKeep)
	}
	if cp.Summary != "the distilled summary" {
		t.Errorf("summary = %q", cp.Summary)
	}
	// 4 agent calls + 1 summarize call.
	if stub.calls != 5 {
		t.Errorf("provider calls = %d, want 5", stub.calls)
	}
	last := stub.reqs[len(stub.reqs)-1]
	if len(last.Messages) != 1 || !strings.Contains(last.Messages[0].Content, "Distill the following conversation") {
		t.Errorf("summarize prompt not sent, got %+v", last.Messages)
	}
}

func TestCall_DegradedModeKeepsHistoryInProcess(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "first"}},
		{resp: ChatResponse{Content: "second"}},
	}}
	a := newTestAssistant(t, NewProviderRing(stub)) // no stores configured

	ctx := context.Background()
	a.Call(ctx, CallRequest{Input: "my name is sam", ThreadID: "t1", UserID: "u1"})
	a.Call(ctx, CallRequest{Input: "what is my name?", ThreadID: "t1", UserID: "u1"})

	second := stub.reqs[1]
	var sawFirstTurn bool
	for _, m := range second.Messages {
		if m.Role == RoleUser && strings.Contains(m.Content, "my name is sam") {
			sawFirstTurn = true
		}
	}
	if !sawFirstTurn {
		t.Error("degraded mode lost in-process history between calls")
	}
}

func TestCall_PromptAssembly(t *testing.T) {
	stub := &stubProvider{}
	mems := NewMemoryFacts()
	ctx := context.Background()
	_ = mems.UpsertFact(ctx, MemoryFact{
		Scope: ScopeUser, ScopeID: "u1", Key: "favorite_album",
		Value: "Kid A", Embedding: []float32{1, 0, 0},
	})
	cps := NewMemoryCheckpoints()
	_ = cps.Save(ctx, Checkpoint{
		ThreadID: "t1",
		Summary:  "they discussed records",
		Messages: []ChatMessage{UserMessage("earlier"), AssistantMessage("yes")},
	})
	a := newTestAssistant(t, NewProviderRing(stub),
		WithSystemPrompt("You are a terse music bot."),
		WithStores(cps, mems),
		WithEmbedder(stubEmbedder{}),
	)

	a.Call(ctx, CallRequest{Input: "albums?", ThreadID: "t1", UserID: "u1", GuildID: "g1"})

	req := stub.reqs[0]
	if req.Messages[0].Role != RoleSystem ||
		!strings.Contains(req.Messages[0].Content, "You are a terse music bot.") ||
		!strings.Contains(req.Messages[0].Content, "### MEMORY CAPABILITIES ###") {
		t.Errorf("system message malformed: %q", req.Messages[0].Content)
	}
	var sawSummary, sawMemories bool
	for _, m := range req.Messages {
		if strings.Contains(m.Content, "Summary of conversation earlier: they discussed records") {
			sawSummary = true
		}
		if strings.Contains(m.Content, "Relevant memories:") && strings.Contains(m.Content, "[User] favorite_album: Kid A") {
			sawMemories = true
		}
	}
	if !sawSummary {
		t.Error("summary block missing from prompt")
	}
	if !sawMemories {
		t.Error("memories block missing from prompt")
	}
}

func TestCall_ReplyContextAndImages(t *testing.T) {
	stub := &stubProvider{}
	a := newTestAssistant(t, NewProviderRing(stub))

	a.Call(context.Background(), CallRequest{
		Input:     "what is this?",
		RepliedTo: "a picture of a capacitor",
		Images:    []Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}},
		ThreadID:  "t1",
		UserID:    "u1",
	})

	req := stub.reqs[0]
	last := req.Messages[len(req.Messages)-1]
	if !strings.HasPrefix(last.Content, "previous message being replied to: a picture of a capacitor") {
		t.Errorf("reply context missing: %q", last.Content)
	}
	if len(last.Images) != 1 || last.Images[0].MIMEType != "image/png" {
		t.Errorf("images not attached: %+v", last.Images)
	}
}

func TestCall_SameThreadSerializes(t *testing.T) {
	release := make(chan struct{})
	blocking := &blockingProvider{gate: release, entered: make(chan struct{}, 2)}
	a := newTestAssistant(t, NewProviderRing(blocking))

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			a.Call(context.Background(), CallRequest{Input: "x", ThreadID: "same", UserID: "u1"})
		}()
	}
	// Only one call may be in flight while the gate is closed.
	<-blocking.entered
	select {
	case <-blocking.entered:
		t.Error("second call entered provider before first finished")
	default:
	}
	close(release)
	wg.Wait()
}

// blockingProvider signals entry and waits for the gate before answering.
type blockingProvider struct {
	gate    chan struct{}
	entered chan struct{}
	inner   stubProvider
}

func (b *blockingProvider) Name() string { return "blocking" }

func (b *blockingProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	b.entered <- struct{}{}
	<-b.gate
	return b.inner.Chat(ctx, req)
}
