// The main package for the profilescout executable.
package main

import (
	"github.com/jfourny/profilescout/cmd"
)

// main defers all execution to the Cobra CLI layer.
func main() {
	cmd.Execute()
}
