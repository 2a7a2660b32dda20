/*
Package ports defines the driven ports (interfaces) of the Wayfarer engine.

These interfaces decouple routing and orchestration from the outside world, so the
engine runs against any text generation backend, session store or capability source.

# Key Interfaces

  - Gateway: text completion backend with a required timeout and typed failures.
  - SessionStore: key-value session context with merge-not-overwrite writes.
  - DistributedLocker: serializes turns of one session across engine replicas.
  - CapabilitySource: produces the raw capability catalogue, read once at startup.
*/
package ports
