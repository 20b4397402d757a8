package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"grievedesk/internal/api"

	"golang.org/x/term"
)

// savedCookie is the on-disk form of a portal cookie.
type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadCookies seeds client with the session saved by an earlier run.
// A missing file means no session yet.
func loadCookies(client *api.Client, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file: %w", err)
	}

	var saved []savedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("parse session file %s: %w", path, err)
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	client.SetCookies(cookies)
	return nil
}

// saveCookies writes the client's cookies so the next run reuses the session.
func saveCookies(client *api.Client, path string) error {
	var saved []savedCookie
	for _, c := range client.Cookies() {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// forgetCookies removes the saved session.
func forgetCookies(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// credentials returns the configured admin credentials, prompting for
// whatever is missing. The password is read without echo.
func (a *app) credentials() (string, string, error) {
	username, password := a.cfg.AdminUsername, a.cfg.AdminPassword

	if username == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	if password == "" {
		fmt.Print("Password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(passwordBytes)
	}

	return username, password, nil
}
