package main

import "corpus/cmd"

func main() {
	cmd.Execute()
}
