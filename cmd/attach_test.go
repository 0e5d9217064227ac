package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kubedbg/internal/config"
)

func TestAttachCmd_RequiredFlags(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		errorContains string
	}{
		{
			name:          "no flags",
			args:          []string{},
			errorContains: "required flag(s)",
		},
		{
			name:          "pod without container",
			args:          []string{"--pod", "api-7f9c"},
			errorContains: "container",
		},
		{
			name:          "container without pod",
			args:          []string{"--container", "app"},
			errorContains: "pod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A fresh command per test avoids flag state bleeding over.
			cmd := newAttachCmd()
			cmd.SetArgs(tt.args)

			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			err := cmd.Execute()
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain %q, got %q", tt.errorContains, err.Error())
			}
		})
	}
}

func TestAttachCmd_Flags(t *testing.T) {
	cmd := newAttachCmd()

	expectedDefaults := map[string]string{
		"namespace":  "default",
		"pod":        "",
		"container":  "",
		"pid":        "1",
		"context":    "",
		"image":      "",
		"timeout":    "0s",
		"local-port": "0",
		"launch-cmd": "",
		"verbose":    "false",
	}

	for name, def := range expectedDefaults {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("Expected %s flag to be defined", name)
			continue
		}
		if flag.DefValue != def {
			t.Errorf("Expected %s default value to be %q, got %q", name, def, flag.DefValue)
		}
	}
}

func TestApplyAttachOverrides(t *testing.T) {
	cfg := config.GetDefaultConfig()
	opts := &attachOptions{
		image:   "registry.example.com/agent:v2",
		timeout: 30 * time.Second,
	}

	applyAttachOverrides(&cfg, opts)

	if cfg.Agent.Image != "registry.example.com/agent:v2" {
		t.Errorf("Expected image override, got %s", cfg.Agent.Image)
	}
	if cfg.Attach.Timeout != 30*time.Second {
		t.Errorf("Expected timeout override, got %s", cfg.Attach.Timeout)
	}

	// Zero values leave the config untouched.
	cfg2 := config.GetDefaultConfig()
	applyAttachOverrides(&cfg2, &attachOptions{})
	if cfg2.Agent.Image != config.DefaultAgentImage {
		t.Errorf("Expected default image to survive, got %s", cfg2.Agent.Image)
	}
	if cfg2.Attach.Timeout != config.DefaultAttachTimeout {
		t.Errorf("Expected default timeout to survive, got %s", cfg2.Attach.Timeout)
	}
}

func TestNewLauncherNoCommand(t *testing.T) {
	launcher := newLauncher("")
	if launcher == nil {
		t.Fatal("Expected a launcher even without a command")
	}
	if err := launcher.Launch(t.Context(), nil, "/tmp/attach.json"); err != nil {
		t.Errorf("No-command launcher must not fail: %v", err)
	}
}

func TestInit_AttachCmd(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "attach" {
			found = true
			break
		}
	}

	if !found {
		t.Error("Expected attach command to be added to root command")
	}
}
