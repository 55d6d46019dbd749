package main

import "github/itish2003/autorag/cmd"

func main() {
	cmd.Execute()
}
