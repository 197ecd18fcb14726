// Package ui renders human-facing command output: colored status lines and
// go-pretty tables for run summaries and checkpoint status. Color is enabled
// only when stdout is a terminal and NO_COLOR is unset.
package ui
