// The main package for the distrocat executable.
package main

import (
	"github.com/JakeFAU/distro-catalog/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
