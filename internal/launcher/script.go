package launcher

import (
	"fmt"
	"os"
	"strings"
)

// WriteScript renders commands as a script for the shell of goos. Each
// command is followed by a guard that exits with the command's status when
// it fails.
func WriteScript(commands []string, goos string) string {
	var b strings.Builder
	if goos == "windows" {
		b.WriteString("@echo off\r\n")
		for _, c := range commands {
			b.WriteString(c)
			b.WriteString("\r\nif %errorlevel% neq 0 exit /b %errorlevel%\r\n")
		}
		return b.String()
	}

	b.WriteString("#!/bin/sh\n")
	for _, c := range commands {
		b.WriteString(c)
		b.WriteString(" || exit $?\n")
	}
	return b.String()
}

// writeScriptFile stores the script for the host shell in a temporary file
// and returns its path.
func writeScriptFile(commands []string) (string, error) {
	f, err := os.CreateTemp("", "bioflow-*"+scriptExt)
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	if _, err := f.WriteString(WriteScript(commands, hostOS)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write script file: %w", err)
	}
	return f.Name(), nil
}
