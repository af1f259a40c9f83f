package main

import "github.com/example/reviewplanner/cmd"

func main() {
	cmd.Execute()
}
