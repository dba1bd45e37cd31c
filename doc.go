// Package mcpagent glues an MCP server to a text-generation model.
//
// A Session owns one connection to an MCP server (spawned on stdio or
// reached over streamable HTTP), the server's tool catalog, and a growing
// conversation transcript. Ask runs one query through the bounded
// tool-invocation loop: the model sees the transcript plus the catalog,
// requested tool invocations are executed against the server, and the
// loop repeats until the model answers in plain text.
//
// Basic usage:
//
//	opts := &mcpagent.Options{
//	    Server: mcpagent.HTTPServerConfig{
//	        URL:   "http://localhost:3000/mcp",
//	        Token: os.Getenv("MCP_SERVER_TOKEN"),
//	    },
//	    Provider: mcpagent.ProviderConfig{
//	        Name:   "openrouter",
//	        APIKey: os.Getenv("OPENROUTER_API_KEY"),
//	        Model:  "anthropic/claude-sonnet-4",
//	    },
//	}
//
//	session, err := mcpagent.Connect(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	answer, err := session.Ask(ctx, "Which pages mention the Q3 roadmap?")
package mcpagent
