/*
Package domain contains the core domain models of the guidance engine.

It defines the fundamental entities of a guided workflow: the Session that
carries conversation state, the Instruction handed back to the external actor
after every call, and the append-only audit trail. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Session: keyed record holding the current state, accumulated fields,
    escalation flag, severity accumulator and audit trail.
  - Instruction: the single payload produced per call; it fully determines
    what the caller must do next.
  - AuditEntry: one step taken by the engine, including stay-in-state retries.
  - Input: the caller-supplied free text or structured report.
*/
package domain
