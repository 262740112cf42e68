package main

import "github.com/tubeload/tubeload/cmd"

func main() {
	cmd.Execute()
}
