package main

import "go.lorenzomilicia.dev/aurora-converter/cmd/cli"

func main() {
	cli.Execute()
}
