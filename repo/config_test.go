package repo

import (
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/op/go-logging"
)

func TestCreateDefaultConfigFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "iouledger-config")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfgPath := path.Join(dir, "sub", defaultConfigFilename)
	if err := createDefaultConfigFile(cfgPath); err != nil {
		t.Fatal(err)
	}

	out, err := ioutil.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "\napiusername=") {
		t.Error("API username was not generated")
	}
	if !strings.Contains(string(out), "\napipassword=") {
		t.Error("API password was not generated")
	}

	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if err := flags.NewIniParser(parser).ParseFile(cfgPath); err != nil {
		t.Fatal(err)
	}
	if cfg.APIUsername == "" || cfg.APIPassword == "" {
		t.Error("Generated credentials did not parse")
	}
}

func TestCleanAndExpandPath(t *testing.T) {
	os.Setenv("IOULEDGER_TEST_DIR", "/tmp/ledger")
	defer os.Unsetenv("IOULEDGER_TEST_DIR")

	if p := cleanAndExpandPath("$IOULEDGER_TEST_DIR/data/../data"); p != "/tmp/ledger/data" {
		t.Errorf("Expected /tmp/ledger/data, got %s", p)
	}
	if p := cleanAndExpandPath(""); p != "" {
		t.Errorf("Expected empty path, got %s", p)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logging.Level
	}{
		{"debug", logging.DEBUG},
		{"INFO", logging.INFO},
		{"notice", logging.NOTICE},
		{"warning", logging.WARNING},
		{"error", logging.ERROR},
		{"critical", logging.CRITICAL},
		{"bogus", logging.INFO},
	}
	for _, test := range tests {
		if l := parseLogLevel(test.level); l != test.expected {
			t.Errorf("%s: expected %s, got %s", test.level, test.expected, l)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	const (
		notaryID = "QmY3ArotKMKaL7YGfbQfyDrib6RVraLqZYWXZvVgZktBxp"
		otherID  = "QmYVXrKrKHDC9FobgmcmshCDyWwdrfwfanNQN4oxJ9Fk3h"
	)
	tests := []struct {
		name  string
		cfg   Config
		valid bool
	}{
		{
			name:  "empty",
			valid: true,
		},
		{
			name:  "notary and blocked node",
			cfg:   Config{Notaries: []string{notaryID}, BlockedNodes: []string{otherID}},
			valid: true,
		},
		{
			name: "invalid notary",
			cfg:  Config{Notaries: []string{"not-a-peer-id"}},
		},
		{
			name: "invalid blocked node",
			cfg:  Config{BlockedNodes: []string{"not-a-peer-id"}},
		},
		{
			name: "blocked notary",
			cfg:  Config{Notaries: []string{notaryID}, BlockedNodes: []string{notaryID}},
		},
		{
			name: "username without password",
			cfg:  Config{APIUsername: "alice"},
		},
		{
			name:  "username and password",
			cfg:   Config{APIUsername: "alice", APIPassword: "letmein"},
			valid: true,
		},
	}
	for _, test := range tests {
		err := validateConfig(&test.cfg)
		if test.valid && err != nil {
			t.Errorf("%s: unexpected error: %s", test.name, err)
		}
		if !test.valid && err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}
