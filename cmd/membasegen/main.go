package main

import "github.com/wnxd/membase/cmd/membasegen/cmd"

func main() {
	cmd.Execute()
}
