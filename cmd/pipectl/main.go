// Command pipectl listens on and connects to local IPC endpoints.
package main

import "github.com/LukasParke/namedpipe/cmd/pipectl/cmd"

func main() {
	cmd.Execute()
}
