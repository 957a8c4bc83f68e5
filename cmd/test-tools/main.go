// Command test-tools smoke-tests a socialgraph MCP server end to end: it
// starts "socialgraph serve", reloads the dataset and calls every tool.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	start := flag.String("start", "", "username to start the path check from")
	end := flag.String("end", "", "username to end the path check at")
	flag.Parse()

	loadEnvFile("env/.env")

	if os.Getenv("NEO4J_URI") == "" && os.Getenv("SOCIALGRAPH_NEO4J_URI") == "" {
		log.Fatal("NEO4J_URI not set (env/.env or environment)")
	}

	fmt.Println("Testing socialgraph MCP server and tool calling")
	fmt.Println("===============================================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	serverPath := findServerBinary()
	if serverPath == "" {
		log.Fatal("socialgraph binary not found. Run: go build -o socialgraph .")
	}
	fmt.Println("ok   1: server binary found")

	cmd := exec.Command(serverPath, "serve")
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("FAIL 2: connect to MCP server: %v", err)
	}
	defer session.Close()
	fmt.Println("ok   2: connected to MCP server")

	listResult, err := session.ListTools(ctx, nil)
	if err != nil {
		log.Fatalf("FAIL 3: list tools: %v", err)
	}
	fmt.Printf("ok   3: found %d tools\n", len(listResult.Tools))
	for _, tool := range listResult.Tools {
		fmt.Printf("       - %s\n", tool.Name)
	}

	failures := 0
	check := func(step int, name string, args map[string]any) *mcp.CallToolResult {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		switch {
		case err != nil:
			fmt.Printf("FAIL %d: %s: %v\n", step, name, err)
		case res.IsError:
			fmt.Printf("FAIL %d: %s returned an error: %s\n", step, name, preview(res))
		default:
			fmt.Printf("ok   %d: %s: %s\n", step, name, preview(res))
			return res
		}
		failures++
		return nil
	}

	check(4, "ingest_dataset", map[string]any{})
	check(5, "query_graph", map[string]any{
		"cypher": "MATCH (p:Person) RETURN count(p) AS people",
	})
	if *start != "" && *end != "" {
		check(6, "find_shortest_path", map[string]any{"start": *start, "end": *end})
	} else {
		fmt.Println("skip 6: find_shortest_path (pass -start and -end)")
	}

	fmt.Println("\n===============================================")
	if failures > 0 {
		fmt.Printf("%d tool call(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("All MCP tool calling tests complete!")
	fmt.Println("\nTo test interactively, run: go run ./cmd/mcp-client ./socialgraph serve")
}

func preview(res *mcp.CallToolResult) string {
	var parts []string
	for _, content := range res.Content {
		if v, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, v.Text)
		}
	}
	text := strings.Join(parts, " ")
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

func findServerBinary() string {
	candidates := []string{
		"./socialgraph",
		"../../socialgraph",
	}
	for _, p := range candidates {
		if abs, err := filepath.Abs(p); err == nil {
			if _, err := os.Stat(abs); err == nil {
				return abs
			}
		}
	}
	if p, err := exec.LookPath("socialgraph"); err == nil {
		return p
	}
	return ""
}

func loadEnvFile(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"'`))
	}
}
