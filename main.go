package main

import "thoreinstein.com/uber/cmd"

func main() {
	cmd.Execute()
}
