// Package model defines the format-agnostic data structures shared by every
// pipeline stage: module descriptors produced by the parser, dependency edges
// and execution plans produced by the graph builder, and the sandbox actions
// consumed by the result applicator.
//
// The types here are plain data. Behavior lives in the stage packages
// (scan, parse, graph, synth, sandbox, apply); keeping the model passive lets
// each stage consume only the validated structure of the previous one.
package model
