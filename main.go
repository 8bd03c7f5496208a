// Package main is the entry point for the Lyra CLI.
package main

import "github.com/kpatel513/lyra/cmd"

func main() {
	cmd.Execute()
}
