package main

import "svcenv/cmd"

// Set at build time with -ldflags "-X main.version=... -X main.repository=owner/name".
var (
	version    = "dev"
	repository = ""
)

func main() {
	cmd.SetVersion(version)
	cmd.SetRepository(repository)
	cmd.Execute()
}
