package main

import "os"

// main hands control to the cobra command tree. Wiring lives in app.go;
// business logic lives in the internal packages.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
