package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/toolhub/ghapp-mcp/internal/core"
)

func main() {
	fmt.Fprintln(os.Stdout, "# MCP Tools (Generated)")
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, "This file is generated from `internal/core/catalog.go`.")
	fmt.Fprintln(os.Stdout)

	for _, op := range core.Catalog().Operations() {
		fmt.Fprintf(os.Stdout, "- `%s`\n", op.Name)
		if op.Description != "" {
			fmt.Fprintf(os.Stdout, "  - Description: %s\n", op.Description)
		}

		if len(op.Fields) > 0 {
			fmt.Fprintln(os.Stdout, "  - Input:")
			for _, f := range op.Fields {
				req := "optional"
				if f.Required {
					req = "required"
				}
				extra := ""
				if f.Default != nil {
					extra += fmt.Sprintf(", default `%v`", f.Default)
				}
				if len(f.Enum) > 0 {
					extra += ", one of " + strings.Join(f.Enum, "|")
				}
				fmt.Fprintf(os.Stdout, "    - `%s` %s (%s%s): %s\n", f.Name, f.Type, req, extra, f.Description)
			}
		}
		fmt.Fprintln(os.Stdout)
	}
}
