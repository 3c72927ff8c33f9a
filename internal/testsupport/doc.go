// Package testsupport provides shared helpers for package tests: temp-dir
// configs, store setup with cleanup, and seed data for workflows, assets,
// and tasks.
package testsupport
