package mcp

import (
	"context"
	"os"
	"os/exec"
	"sort"

	"github.com/MBemera/Radsim-sub001/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages the connection to a single MCP server subprocess and the
// tools it advertises.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*Tool
}

// NewClient starts the MCP server subprocess, connects over stdio and
// discovers its tools.
func NewClient(name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "pilot", Version: "v1.0.0"}, nil)
	ctx := context.Background()
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}

	client := &Client{
		Name:  name,
		cmd:   cmd,
		conn:  conn,
		tools: make(map[string]*Tool),
	}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range list.Tools {
			client.tools[t.Name] = &Tool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				client:      client,
			}
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}

	return client, nil
}

// Tools returns the discovered tools sorted by name.
func (c *Client) Tools() []*Tool {
	out := make([]*Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].toolName < out[j].toolName })
	return out
}

// Get returns a tool by its short name.
func (c *Client) Get(toolName string) (*Tool, bool) {
	t, ok := c.tools[toolName]
	return t, ok
}

// Stop closes the session and terminates the server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// Tool is a remote tool exposed by an MCP server. It satisfies the agent's
// tool interface so the orchestration loop treats it like any built-in.
type Tool struct {
	serverName  string
	toolName    string
	description string
	client      *Client
}

// Name returns the server-unqualified tool name. Some providers reject
// punctuation in tool names, so the server prefix is not included.
func (t *Tool) Name() string { return t.toolName }

func (t *Tool) Description() string { return t.description }

// Execute forwards the call to the MCP server and concatenates the text
// content of the result.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	res, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s' on MCP server '%s'", t.toolName, t.serverName)
	}
	var out string
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			out += tc.Text
		}
	}
	return out, nil
}
