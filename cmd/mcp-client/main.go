package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [<args>]")
		fmt.Fprintln(os.Stderr, "Example: mcp-client socialgraph serve --ingest-on-start")
		os.Exit(2)
	}

	ctx := context.Background()

	// Start the server as a subprocess
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "socialgraph-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	fmt.Println("Connected to socialgraph MCP server!")
	fmt.Println("Available commands:")
	fmt.Println("  /tools           - List available tools")
	fmt.Println("  /path <a> <b>    - Shortest chain of acquaintances between two usernames")
	fmt.Println("  /ingest          - Reload the configured dataset")
	fmt.Println("  /graph <cypher>  - Execute Cypher query")
	fmt.Println("  /exit            - Exit the client")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch {
		case input == "/exit":
			fmt.Println("Goodbye!")
			return

		case input == "/tools":
			listTools(ctx, session)

		case input == "/ingest":
			callTool(ctx, session, "ingest_dataset", map[string]any{})

		case strings.HasPrefix(input, "/path"):
			parts := strings.Fields(input)
			if len(parts) != 3 {
				fmt.Println("Usage: /path <start> <end>")
				continue
			}
			callTool(ctx, session, "find_shortest_path", map[string]any{
				"start": parts[1],
				"end":   parts[2],
			})

		case strings.HasPrefix(input, "/graph "):
			cypher := strings.TrimPrefix(input, "/graph ")
			callTool(ctx, session, "query_graph", map[string]any{
				"cypher": cypher,
			})

		default:
			fmt.Println("Unknown command. Try /tools.")
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Scanner error: %v", err)
	}
}

func listTools(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("Available Tools:")
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			log.Printf("Error listing tools: %v", err)
			return
		}
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}
	fmt.Println()
}

func callTool(ctx context.Context, session *mcp.ClientSession, toolName string, args map[string]any) {
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		log.Printf("Error calling tool: %v", err)
		return
	}

	printResult(result)
}

func printResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Printf("Error: ")
	} else {
		fmt.Printf("Result: ")
	}

	// Prefer the answer field of structured output when there is one
	if m, ok := result.StructuredContent.(map[string]any); ok {
		if answer, ok := m["answer"].(string); ok && answer != "" {
			fmt.Println(answer)
			fmt.Println()
			return
		}
	}

	for _, content := range result.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			fmt.Println(v.Text)
		default:
			jsonData, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				fmt.Printf("%+v\n", content)
			} else {
				fmt.Println(string(jsonData))
			}
		}
	}
	fmt.Println()
}
