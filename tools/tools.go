package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/MBemera/Radsim-sub001/config"
	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/MBemera/Radsim-sub001/tools/mcp"
	"github.com/bmatcuk/doublestar/v4"
)

// Tool defines the interface for any action the agent can take. The
// orchestration core never inspects a tool's internals, only this surface.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry holds all available tools, including those discovered from MCP
// servers.
type Registry struct {
	tools      map[string]Tool
	mcpClients map[string]*mcp.Client
}

// NewRegistry registers the built-in tools and connects configured MCP
// servers. MCP servers that fail to start are skipped rather than fatal.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		tools:      make(map[string]Tool),
		mcpClients: make(map[string]*mcp.Client),
	}

	r.Register(&ReadFileTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&WriteFileTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&DeleteFileTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&ListDirectoryTool{fsAccess: &cfg.FilesystemAccess})
	r.Register(&ExecuteCommandTool{})

	for _, server := range cfg.AdditionalMCPServers {
		client, err := mcp.NewClient(server.Name, server.Command, server.Args)
		if err != nil {
			continue
		}
		r.mcpClients[server.Name] = client
		for _, t := range client.Tools() {
			r.Register(t)
		}
	}

	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Close shuts down any MCP server subprocesses.
func (r *Registry) Close() {
	for _, client := range r.mcpClients {
		client.Stop()
	}
}

// ActiveTools returns the tool instances for a toolset. An empty toolset
// exposes every registered tool, sorted by name for a stable declaration
// order. Entries like "server.*" expand to all tools of that MCP server.
func (r *Registry) ActiveTools(ts *config.Toolset) ([]Tool, error) {
	if ts == nil || len(ts.Tools) == 0 {
		var all []Tool
		for _, t := range r.tools {
			all = append(all, t)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
		return all, nil
	}

	var active []Tool
	for _, toolName := range ts.Tools {
		if server, ok := strings.CutSuffix(toolName, ".*"); ok {
			client, found := r.mcpClients[server]
			if !found {
				return nil, errors.New("MCP server '%s' from toolset '%s' is not configured", server, ts.Name)
			}
			for _, t := range client.Tools() {
				active = append(active, t)
			}
			continue
		}

		t, ok := r.Get(toolName)
		if !ok {
			return nil, errors.New("tool '%s' from toolset '%s' is not registered", toolName, ts.Name)
		}
		active = append(active, t)
	}
	return active, nil
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.New("invalid glob pattern '%s': %v", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
