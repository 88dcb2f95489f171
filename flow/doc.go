// Package flow implements the fixed orchestration strategies built on top of
// the Router and Context contracts: sequential delegation, concurrent
// fan-out/aggregate, iterative plan-execute-replan and iterative
// self-critique.
//
// Every flow is itself a core.Unit, so strategies nest arbitrarily: a flow
// can call another flow exactly as if it were a tool. Flows consume only the
// Router reference carried on the incoming request; they never touch the
// registry or other units directly.
package flow
