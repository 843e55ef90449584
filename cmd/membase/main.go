// Command membase is an example payload. Built with -buildmode=c-shared on
// Windows it starts its feature loop once the DLL is loaded.
package main

//go:generate go run ../membasegen generate --config config.json --imports imports.json --out imports

func main() {}
