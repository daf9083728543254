// Package types defines the shared data model of the assistant: captured
// frames, analysis results, question/option records, and the unified
// structured error type used across components.
package types
