package main

import "github.com/jarqyn/jarqyn/cmd"

func main() {
	cmd.Execute()
}
