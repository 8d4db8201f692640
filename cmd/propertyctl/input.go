package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	passwordEnv = "PROPERTYCTL_PASSWORD"
	apiEnv      = "PROPERTYHUB_API"
	defaultAPI  = "http://localhost:8000/api/v1"
)

// readPassword is swapped out in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

// resolvePassword takes the password from PROPERTYCTL_PASSWORD, or prompts
// for it on w without echo.
func resolvePassword(getenv func(string) string, w io.Writer) (string, error) {
	if pw := getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	raw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(raw), nil
}

func apiURL(getenv func(string) string) string {
	if url := getenv(apiEnv); url != "" {
		return strings.TrimRight(url, "/")
	}
	return defaultAPI
}
