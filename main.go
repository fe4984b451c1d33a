package main

import "github.com/fakeyudi/partline/cmd"

func main() {
	cmd.Execute()
}
