/*
Package wayfarer is an agent routing and multi-agent orchestration engine for a
conversational travel companion.

Each user turn is scored against a catalogue of specialist responders (trip
planning, mood, communication, decisions, calming, summaries). The best matches
run concurrently against a text generation backend under a hard latency budget,
and their answers are merged into a single attributed reply. A responder that is
slow or failing never breaks a turn: it falls back to a canned, context-aware
answer, and the reply is never empty.

# Concept

The engine is split the hexagonal way. Routing, execution and synthesis are pure
domain logic; the generation backend, the session store and the capability
catalogue are ports with swappable adapters (Ollama, OpenAI, Anthropic; memory or
Redis sessions; YAML files or a Loam document directory).

# Key Features

  - Deterministic routing: keyword, phrase and pattern scoring with a relevance
    floor, continuity bonus and an LRU decision cache.
  - Latency budgets: SLA profiles (fast, interactive, deep) bound every turn.
  - Graceful degradation: timeouts and backend failures become fallbacks.
  - Session memory: a slowly accumulated traveler profile merged turn by turn.

# Usage

	eng, err := wayfarer.New(
		wayfarer.WithGateway(gateway.NewOllama()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	res, err := eng.RunTurn(ctx, "I'm anxious about flying to Tokyo", "traveler-42", "interactive")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Reply)
	fmt.Println("answered by", res.ContributingResponderIDs)
*/
package wayfarer
