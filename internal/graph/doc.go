// Package graph resolves use references between validated module
// descriptors into a directed dependency graph, detects cycles, and computes
// deterministic execution plans.
//
// Two edge kinds order execution in opposite directions. A module reference
// (threading a component's input) runs the referencing module first, so the
// component observes its populated input. An output reference runs the
// providing module first, so outputs are final before a dependent reads
// them. Nodes with no ordering constraint between them keep source-scan
// discovery order, which makes the topological order, and therefore all
// generated code, byte-stable across runs for identical input.
package graph
