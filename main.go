package main

import (
	"clipsync/cmd"
)

func main() {
	cmd.Execute()
}
