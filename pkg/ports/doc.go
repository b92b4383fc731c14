/*
Package ports defines the driven ports (interfaces) for the guidance engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, option matchers and archives.

# Key Interfaces

  - SessionStore: create, load, save, delete, enumerate and expire sessions.
  - DistributedLocker: distributed locking for concurrent session access across replicas.
  - Resolver: resolves free-text input against a state's option set.
  - Archiver: durable archive invoked when a session reaches a terminal state.
*/
package ports
