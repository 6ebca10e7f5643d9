// Package discogs is the AI core of the discogs chat bot: provider
// failover, conversation state with summarization, long-term scoped
// memory, and an LLM tool-calling loop behind a single request façade.
//
// The chat-platform frontend hands every addressed message to
// [Assistant.Call] and posts whatever string comes back. The assistant
// never returns an error to the frontend; terminal failures collapse to
// the literal reply "AI Error".
//
//	ring := discogs.NewProviderRing(ollama, gemini, groq)
//	bot, err := discogs.NewAssistant(ring,
//		discogs.WithSystemPrompt(persona),
//		discogs.WithStores(checkpoints, memories),
//		discogs.WithEmbedder(embedder),
//		discogs.WithTools(search, urls, xpost),
//		discogs.WithMemoryTool(remember),
//	)
//	reply := bot.Call(ctx, discogs.CallRequest{
//		Input:    "what did I say my favorite album was?",
//		ThreadID: channelID,
//		UserID:   userID,
//		GuildID:  guildID,
//	})
//
// Providers live in provider/gemini and provider/openaicompat (the latter
// covers both a local Ollama server and hosted OpenAI-compatible APIs such
// as Groq). Persistent state lives in store/postgres or store/sqlite; with
// no store configured the assistant degrades to in-process state.
//
// See cmd/discobot for a complete wired binary and internal/app for the
// credential-driven assembly.
package discogs
