// Package pizza is the order-taking workflow: crust, category, toppings,
// size and a final confirmation. Free-text answers are interpreted by the
// injected resolver; the workflow only decides what happens next.
package pizza
