// The main package for the countsort executable.
package main

import (
	"github.com/JakeFAU/countsort/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
