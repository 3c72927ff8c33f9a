// Command labelflow is the operator CLI for the task progression pipeline:
// listing and progressing tasks, inspecting workflows, and resolving
// management alerts.
package main
