/*
Package domain contains the core types of the Wayfarer routing engine.

It describes what a responder can do, how a turn progresses, what each responder
produced and what survives between turns. The package is kept pure: no I/O, no
persistence and no knowledge of any language-model backend.

# Key Entities

  - CapabilityDescriptor: static description of a responder (keywords, patterns, priority).
  - RoutingDecision: the ordered, scored selection produced for one utterance.
  - Outcome: the closed set of per-responder results (Success, TimedOut, Failed).
  - TurnState: the per-turn record driven through Idle, Routing, Executing, Synthesizing, Completed.
  - SessionSnapshot: what a session remembers across turns, updated by merge only.
  - SLAProfile: a named latency budget with its cardinality limit.
*/
package domain
