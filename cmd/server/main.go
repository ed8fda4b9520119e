package main

import (
	"github.com/SnippyKid/OmegaChat-sub000/cmd"
)

func main() {
	cmd.Execute()
}
