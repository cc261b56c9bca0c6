// The main package for the rightmove-scraper executable.
package main

import (
	"github.com/propfetch/rightmove-scraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
