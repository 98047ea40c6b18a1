package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"

	"github.com/abelbrown/stationreviews/internal/httpapi"
)

type loginCmd struct {
	Username string `arg:"" help:"Account name."`
	Password string `help:"Password (prompted when empty)." env:"STATIONREVIEWS_PASSWORD"`
}

func (l *loginCmd) Run(g *globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	password, err := passwordOrPrompt(l.Password)
	if err != nil {
		return err
	}
	client, err := httpapi.New(httpapi.Options{BaseURL: cfg.API.BaseURL, Timeout: cfg.Timeout()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()

	tok, err := client.Login(ctx, l.Username, password)
	if err != nil {
		if errors.Is(err, httpapi.ErrUnauthorized) {
			return fmt.Errorf("login failed: wrong username or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}
	who, err := client.CurrentIdentity(ctx)
	if err != nil {
		return fmt.Errorf("login succeeded but whoami failed: %w", err)
	}

	cfg.API.Username = who.Username
	cfg.API.AccessToken = tok.Access
	if err := cfg.SaveTo(g.configPath()); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	role := ""
	if who.Privileged {
		role = " (staff)"
	}
	fmt.Printf("Logged in as %s%s. Token saved to %s\n", who.Username, role, g.configPath())
	return nil
}

type registerCmd struct {
	Username string `arg:"" help:"Account name."`
	Password string `help:"Password (prompted when empty)." env:"STATIONREVIEWS_PASSWORD"`
	Login    bool   `help:"Log in after registering." default:"true" negatable:""`
}

func (r *registerCmd) Run(g *globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	password, err := passwordOrPrompt(r.Password)
	if err != nil {
		return err
	}
	client, err := httpapi.New(httpapi.Options{BaseURL: cfg.API.BaseURL, Timeout: cfg.Timeout()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()

	if err := client.Register(ctx, r.Username, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Printf("Registered %s.\n", r.Username)
	if !r.Login {
		return nil
	}
	return (&loginCmd{Username: r.Username, Password: password}).Run(g)
}

type logoutCmd struct{}

func (logoutCmd) Run(g *globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	cfg.API.AccessToken = ""
	cfg.API.Username = ""
	if err := cfg.SaveTo(g.configPath()); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

// passwordOrPrompt returns pw, or prompts for one on stdin when pw is empty.
func passwordOrPrompt(pw string) (string, error) {
	if pw != "" {
		return pw, nil
	}
	return promptPassword(os.Stdin, os.Stderr)
}

// promptPassword reads a password from in. A terminal is read with echo
// off; anything else (a pipe, a file) supplies its first line.
func promptPassword(in *os.File, out io.Writer) (string, error) {
	var line string
	if term.IsTerminal(in.Fd()) {
		fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(in.Fd())
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		line = string(b)
	} else {
		s, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && s == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		line = s
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	return pw, nil
}
