// Package errors defines error types for the MCP agent glue.
//
// This package provides structured error types that wrap the different
// failure scenarios when talking to an MCP server or a text-generation
// provider. All error types support error unwrapping and can be checked
// using errors.Is, errors.As, and errors.AsType.
package errors
