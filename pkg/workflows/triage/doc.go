/*
Package triage is the medical-triage workflow.

It enforces a fixed protocol: red-flag screening, chief complaint, medical
history, vital signs and a final severity assessment. The agent driving the
session reports structured findings at every step; any step may trigger the
emergency branch, after which the agent must acknowledge the persisted
triage record before the session ends.

This is a demonstration protocol. It is not medical software.
*/
package triage
