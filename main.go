package main

import "github.com/weave-logic-ai/clawft/cmd"

func main() {
	cmd.Execute()
}
