package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	includeEnv()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// includeEnv loads a .env file from the working directory. Variables already
// set in the environment win.
func includeEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", slog.String("error", err.Error()))
	}
}
