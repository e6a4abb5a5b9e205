package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"areacapture/cmd"
)

func main() {
	// A missing .env file is normal; any other load failure is reported.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	os.Exit(cmd.Execute())
}
