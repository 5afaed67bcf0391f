// Command yuki-frame supervises a fleet of tool processes and routes
// line-oriented events between them.
package main

import (
	"github.com/tsiyukino/yukiframe/internal/cli"
)

func main() {
	cli.Execute()
}
