// The main package for the feedgate executable.
package main

import (
	"github.com/matchpulse/feedgate/cmd"
)

func main() {
	cmd.Execute()
}
