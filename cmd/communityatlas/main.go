package main

import "github.com/calgarydata/communityatlas/internal/cmd"

func main() {
	cmd.Execute()
}
