package main

import cmd "github.com/rohmanhakim/curlgrab/internal/cli"

func main() {
	cmd.Execute()
}
