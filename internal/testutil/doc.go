// Package testutil provides shared helpers for package tests: scripted
// agents with controllable outcome and timing.
package testutil
