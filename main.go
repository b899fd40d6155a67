package main

import "github.com/taskvault/taskvault/cmd"

func main() {
	cmd.Execute()
}
