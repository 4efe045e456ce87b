package main

import (
	"log"

	"github.com/vainnor/active-flights/cmd"
	"github.com/vainnor/active-flights/config"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cmd.Execute()
}
