package main

import "github.com/clinicq/backend/internal/cli"

func main() {
	cli.Execute()
}
