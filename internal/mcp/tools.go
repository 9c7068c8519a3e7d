package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/toolhub/ghapp-mcp/internal/core"
)

// Tools renders the operation catalog as MCP tool definitions.
func Tools(reg *core.Registry) []mcp.Tool {
	ops := reg.Operations()
	tools := make([]mcp.Tool, 0, len(ops))
	for _, op := range ops {
		opts := []mcp.ToolOption{mcp.WithDescription(op.Description)}
		for _, f := range op.Fields {
			opts = append(opts, fieldOption(f))
		}
		tools = append(tools, mcp.NewTool(op.Name, opts...))
	}
	return tools
}

func fieldOption(f core.FieldSpec) mcp.ToolOption {
	props := []mcp.PropertyOption{mcp.Description(f.Description)}
	if f.Required {
		props = append(props, mcp.Required())
	}
	if len(f.Enum) > 0 {
		props = append(props, mcp.Enum(f.Enum...))
	}

	switch f.Type {
	case core.TypeNumber:
		return mcp.WithNumber(f.Name, props...)
	case core.TypeBoolean:
		if b, ok := f.Default.(bool); ok {
			props = append(props, mcp.DefaultBool(b))
		}
		return mcp.WithBoolean(f.Name, props...)
	case core.TypeStringArray:
		props = append(props, mcp.Items(map[string]any{"type": "string"}))
		return mcp.WithArray(f.Name, props...)
	default:
		if s, ok := f.Default.(string); ok && s != "" {
			props = append(props, mcp.DefaultString(s))
		}
		return mcp.WithString(f.Name, props...)
	}
}
