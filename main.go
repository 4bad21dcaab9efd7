package main

import "github.com/variantdev/libroll/cmd"

func main() {
	cmd.Execute()
}
