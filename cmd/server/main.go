package main

import "github.com/Togather-Foundation/registration/cmd/server/cmd"

func main() {
	cmd.Execute()
}
