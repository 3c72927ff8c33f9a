// Package workflow defines the labeling domain model: tasks, assets, stages,
// stage connections, and the pure rules that govern them. Status transition
// legality is a total decision table, status application is an in-memory
// mutation, and the stage graph resolver answers routing queries over loaded
// topology. Nothing in this package performs I/O.
package workflow
