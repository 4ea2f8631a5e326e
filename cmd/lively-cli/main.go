package main

import "livelyclient/cmd/lively-cli/command"

func main() {
	command.Execute()
}
