package main

import "github.com/voicedesk/voicedesk/internal/cli"

func main() {
	cli.Execute()
}
