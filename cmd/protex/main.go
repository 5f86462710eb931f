package main

import "github.com/MeKo-Tech/protex/internal/cmd"

func main() {
	cmd.Execute()
}
