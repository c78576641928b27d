package main

import "github.com/withobsrvr/quadctl/cmd"

func main() {
	cmd.Execute()
}
