package main

import (
	"context"

	"nomadscout/cmd/nlsctl/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
