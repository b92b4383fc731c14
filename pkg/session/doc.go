/*
Package session implements session access orchestration.

It linearizes operations on a single session (one mutual-exclusion scope per
session ID, reference counted so idle locks are garbage collected), optionally
layering a distributed lock on top for multi-replica deployments, and provides
the Janitor that periodically evicts idle sessions.
*/
package session
