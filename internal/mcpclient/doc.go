// Package mcpclient wraps the JSON-RPC connection with typed MCP
// operations: the initialize handshake, tool catalog listing, tool
// execution, and the optional resource listing. Wire types come from the
// official MCP SDK where it defines them.
package mcpclient
