// Package core defines the contracts shared by every component of FlowMesh:
// the Context envelope threaded through nested calls, the Request/Response
// pair every callable unit consumes and produces, the Unit interface behind
// which tools, model endpoints, agents and flows all hide, and the error
// taxonomy used to classify failures across unit boundaries.
//
// The package is dependency-light by design: orchestration strategies,
// transports and model adapters live in their own packages and consume only
// these contracts, which is what allows a flow to call another flow as if it
// were a tool.
package core
