package main

import "github.com/oshokin/umu-scout/cmd/umu-scout/cmd"

func main() {
	cmd.Execute()
}
