package main

import "github.com/notargets/wellpart/cmd/wellpart/cmd"

func main() {
	cmd.Execute()
}
