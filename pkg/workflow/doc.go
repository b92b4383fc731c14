/*
Package workflow defines the declarative transition tables that drive sessions.

A Table maps every state of a variant to a StateSpec: the kind of the state,
the transition function that consumes caller input, the prompt rendered when
the state is entered, and the edges the transition function may take.

Transition functions are pure with respect to I/O, apart from the injected
Resolver. They mutate the session they are given (fields, severity, the
escalation flag) and return an Outcome; the engine applies the outcome,
records the audit entry and persists the session.

# State kinds

  - Collect: a mandatory step of the normal path.
  - Escalation: entered only when the engine forces an escalated session off
    the normal path.
  - Terminal: absorbing. No handler, no edges.
*/
package workflow
