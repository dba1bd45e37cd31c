// Package transport provides the record transports the JSON-RPC connection
// runs over: a stdio transport that spawns the MCP server as a subprocess
// and frames records as newline-delimited JSON, and a streamable HTTP
// transport that POSTs each record and accepts plain-JSON or event-stream
// responses.
package transport
