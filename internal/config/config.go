// Package config loads the framework's INI-style configuration file (spec
// §6): a [core]/[framework] section plus one [tool:<name>] section per
// managed tool. Parsing this narrow, framework-external format is out of
// the core's scope per spec §1, so it's implemented directly on
// bufio.Scanner rather than by adding a dependency — see DESIGN.md.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tsiyukino/yukiframe/internal/frameerr"
)

const (
	DefaultMaxTools           = 100
	DefaultMessageQueueSize   = 1000
	DefaultControlPort        = 9999
	DefaultInboxCapacity      = 100
	DefaultMaxRestarts        = 3
	MaxSubscriptionsPerTool   = 50
	MaxNameLength             = 63
)

// Core holds the [core]/[framework] section. Both section names are
// accepted and merged into this one struct — operators have historically
// used either name for the same block.
type Core struct {
	LogFile             string
	LogLevel            string
	PidFile             string
	MaxTools            int
	MessageQueueSize    int
	EnableDebug         bool
	EnableRemoteControl bool
	ControlPort         int
}

// Tool holds one [tool:<name>] section.
type Tool struct {
	Name           string
	Command        string
	Description    string
	Autostart      bool
	RestartPolicy  string // "always" (default) | "never" | "on_demand"
	RestartOnCrash bool
	MaxRestarts    int
	SubscribeTo    []string
}

// Config is the fully parsed, defaulted configuration file.
type Config struct {
	Core  Core
	Tools []Tool // declaration order preserved
}

func defaultCore() Core {
	return Core{
		LogLevel:         "INFO",
		MaxTools:         DefaultMaxTools,
		MessageQueueSize: DefaultMessageQueueSize,
		ControlPort:      DefaultControlPort,
	}
}

// LoadFromFile reads and parses path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, frameerr.New(frameerr.NotFound, "config.LoadFromFile", err)
		}
		return nil, frameerr.New(frameerr.IO, "config.LoadFromFile", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse reads an INI document from r. Duplicate keys within a section: last
// one wins, matching spec §6.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{Core: defaultCore()}

	var (
		section     string // "" | "core" | "tool:<name>"
		currentTool *Tool
	)

	flushTool := func() {
		if currentTool != nil {
			cfg.Tools = append(cfg.Tools, *currentTool)
			currentTool = nil
		}
	}

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flushTool()
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if name, ok := strings.CutPrefix(section, "tool:"); ok {
				currentTool = &Tool{
					Name:        strings.TrimSpace(name),
					MaxRestarts: DefaultMaxRestarts,
				}
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, frameerr.New(frameerr.ParseFailed, "config.Parse",
				fmt.Errorf("line %d: expected key=value", lineNo))
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch {
		case section == "core" || section == "framework":
			applyCoreKey(&cfg.Core, key, value)
		case strings.HasPrefix(section, "tool:") && currentTool != nil:
			applyToolKey(currentTool, key, value)
		default:
			// Ignore keys outside any recognised section rather than fail
			// the whole load over a stray line.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, frameerr.New(frameerr.IO, "config.Parse", err)
	}
	flushTool()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyCoreKey(c *Core, key, value string) {
	switch key {
	case "log_file":
		c.LogFile = value
	case "log_level":
		c.LogLevel = strings.ToUpper(value)
	case "pid_file":
		c.PidFile = value
	case "max_tools":
		if n, err := strconv.Atoi(value); err == nil {
			c.MaxTools = n
		}
	case "message_queue_size":
		if n, err := strconv.Atoi(value); err == nil {
			c.MessageQueueSize = n
		}
	case "enable_debug":
		c.EnableDebug = isTruthy(value)
	case "enable_remote_control":
		c.EnableRemoteControl = isTruthy(value)
	case "control_port":
		if n, err := strconv.Atoi(value); err == nil {
			c.ControlPort = n
		}
	}
}

func applyToolKey(t *Tool, key, value string) {
	switch key {
	case "command":
		t.Command = value
	case "description":
		t.Description = value
	case "autostart":
		t.Autostart = isTruthy(value)
	case "restart_policy":
		t.RestartPolicy = strings.ToLower(value)
	case "restart_on_crash":
		t.RestartOnCrash = isTruthy(value)
	case "max_restarts":
		if n, err := strconv.Atoi(value); err == nil {
			t.MaxRestarts = n
		}
	// subscribe_to (spec wire key) and subscriptions (in-memory-struct
	// spelling some configs carry over from the original source) are both
	// accepted per spec §9 open question.
	case "subscribe_to", "subscriptions":
		t.SubscribeTo = splitSubscriptions(value)
	}
}

func splitSubscriptions(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		trimmed := trimSubscription(p)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

// trimSubscription strips surrounding whitespace and a single matching pair
// of quotes, matching the Event Bus's subscription-match trimming rule
// (spec §4.D) so config-declared subscriptions compare equal to the same
// values trimmed at fan-out time.
func trimSubscription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}

// Validate enforces the structural bounds spec §3 places on the registry
// (tool count, name length, subscription cap) before any tool is ever
// registered.
func (c *Config) Validate() error {
	if len(c.Tools) > c.Core.MaxTools {
		return frameerr.New(frameerr.Generic, "config.Validate",
			fmt.Errorf("%d tools declared, exceeds max_tools=%d", len(c.Tools), c.Core.MaxTools))
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, t := range c.Tools {
		if t.Name == "" {
			return frameerr.New(frameerr.InvalidArg, "config.Validate", fmt.Errorf("tool section with empty name"))
		}
		if len(t.Name) > MaxNameLength {
			return frameerr.New(frameerr.InvalidArg, "config.Validate",
				fmt.Errorf("tool %q name exceeds %d chars", t.Name, MaxNameLength))
		}
		if seen[t.Name] {
			return frameerr.New(frameerr.AlreadyExists, "config.Validate", fmt.Errorf("duplicate tool section %q", t.Name))
		}
		seen[t.Name] = true
		if t.Command == "" {
			return frameerr.New(frameerr.InvalidArg, "config.Validate", fmt.Errorf("tool %q: command is required", t.Name))
		}
		if len(t.SubscribeTo) > MaxSubscriptionsPerTool {
			return frameerr.New(frameerr.Generic, "config.Validate",
				fmt.Errorf("tool %q: %d subscriptions exceeds cap %d", t.Name, len(t.SubscribeTo), MaxSubscriptionsPerTool))
		}
	}
	return nil
}
