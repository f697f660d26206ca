package main

import "github.com/audiolibrelab/echonote/cmd"

func main() {
	cmd.Execute()
}
