/*
Package guidance is a session-based guided-workflow engine.

The engine owns multi-turn interaction state on behalf of an external actor,
typically an AI agent. Instead of letting the actor decide what happens next,
each call hands back a single Instruction that fully determines the next step:
what to ask, what data to report, or that the conversation is over.

# Concept

A workflow is a declarative transition table (see pkg/workflow). Every call to
Continue loads the session under a per-session lock, runs exactly one
transition function, appends one audit entry and persists the result. Free
text is never interpreted by the engine; it is delegated to a Resolver.
Escalation is irreversible: once a session is escalated it can only travel the
escalation branch.

Two workflows ship with the module: "pizza" (order taking) and "triage"
(a demonstration medical triage protocol with an emergency branch).

# Usage

	eng, err := guidance.New()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	inst, err := eng.Start(ctx, pizza.Variant)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(inst.Prompt)

	inst, err = eng.Continue(ctx, inst.SessionID, domain.Input{Text: "thin crust"})

Sessions live in a ports.SessionStore (in-memory, Redis or one JSON file per
session). Terminal sessions are handed to an optional ports.Archiver and kept
until the idle sweep removes them; run Engine.Janitor in the background to
bound memory. pkg/persistence/middleware encrypts stores at rest and masks
patient identifiers before they reach the archive.
*/
package guidance
