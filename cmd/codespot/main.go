package main

import "github.com/MeKo-Tech/codespot/cmd/codespot/cmd"

func main() {
	cmd.Execute()
}
