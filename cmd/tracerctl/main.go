// tracerctl is the CLI client for the tracerd state-space explorer daemon.
package main

import "github.com/lpaquette/bgptracer/cmd/tracerctl/commands"

func main() {
	commands.Execute()
}
