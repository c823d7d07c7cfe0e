package repo

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/cpacia/iouledger/version"
	"github.com/jessevdk/go-flags"
	peer "github.com/libp2p/go-libp2p-core/peer"
	"github.com/natefinch/lumberjack"
	"github.com/op/go-logging"
)

const (
	defaultConfigFilename = "iouledger.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "iouledger.log"
)

var (
	// DefaultHomeDir is the data directory used when none is configured.
	DefaultHomeDir = btcutil.AppDataDir("iouledger", false)

	// DefaultSwarmAddrs are the addresses the node listens on when none
	// are configured.
	DefaultSwarmAddrs = []string{
		"/ip4/0.0.0.0/tcp/4101",
		"/ip6/::/tcp/4101",
	}

	// DefaultGatewayAddr is the API listen address when none is configured.
	DefaultGatewayAddr = "/ip4/127.0.0.1/tcp/4102"

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)

	fileLogFormat   = logging.MustStringFormatter(`%{time:2006-01-02T15:04:05} [%{level}] [%{module}] %{message}`)
	stdoutLogFormat = logging.MustStringFormatter(`%{color:reset}%{color}%{time:15:04:05.000} [%{level}] [%{module}] %{message}`)
)

// Config defines the configuration options for the ledger node.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion    bool     `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile     string   `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir        string   `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir         string   `long:"logdir" description:"Directory to log output."`
	LogLevel       string   `short:"l" long:"loglevel" description:"set the logging level [debug, info, notice, warning, error, critical]" default:"info"`
	BootstrapAddrs []string `long:"bootstrapaddr" description:"Peers to connect to on startup. /dns4 addresses are resolved."`
	SwarmAddrs     []string `long:"swarmaddr" description:"Override the default swarm addresses with the provided values"`
	GatewayAddr    string   `long:"gatewayaddr" description:"Override the default gateway address with the provided value"`
	Notaries       []string `long:"notary" description:"Peer ID of a notary this node may use. May be repeated."`
	NotaryMode     bool     `long:"notarymode" description:"Run the notary service on this node"`
	Testnet        bool     `short:"t" long:"testnet" description:"Use the test network"`
	BlockedNodes   []string `long:"blockednodes" description:"Peer IDs of nodes whose sessions are refused"`
	APIUsername    string   `long:"apiusername" description:"Username for basic authentication on the API"`
	APIPassword    string   `long:"apipassword" description:"Password for basic authentication on the API"`
	APICookie      string   `long:"apicookie" description:"Cookie value required on every API request"`
	APIAllowedIPs  []string `long:"apiallowedips" description:"Only accept API requests from these IPs"`
	APINoCors      bool     `long:"apinocors" description:"Disable CORS headers on the API"`
	APIPublicOnly  bool     `long:"apipubliconly" description:"Only expose read-only API endpoints"`
	DisableGateway bool     `long:"disablegateway" description:"Do not start the API gateway"`
}

// LoadConfig builds the config in layers, each overriding the last:
//
// 	1) built in defaults
// 	2) the config file, created with defaults and fresh API credentials
// 	   if it does not exist yet
// 	3) command line options
//
// The command line is parsed twice. The first pass only looks for
// --configfile, --datadir and --version.
func LoadConfig() (*Config, []string, error) {
	cfg := Config{
		DataDir:    DefaultHomeDir,
		ConfigFile: defaultConfigFile,
		LogDir:     defaultLogDir,
	}

	preCfg := cfg
	if _, err := flags.NewParser(&preCfg, flags.HelpFlag|flags.IgnoreUnknown).Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}

	appName := strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.String())
		os.Exit(0)
	}

	// A data directory given on the command line moves the default config
	// file and log directory along with it.
	if preCfg.DataDir != DefaultHomeDir && preCfg.ConfigFile == defaultConfigFile {
		dataDir := cleanAndExpandPath(preCfg.DataDir)
		preCfg.ConfigFile = filepath.Join(dataDir, defaultConfigFilename)
		cfg.LogDir = filepath.Join(dataDir, defaultLogDirname)
	}

	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfigFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config file: %v\n", err)
		}
	}

	parser := flags.NewParser(&cfg, flags.Default|flags.IgnoreUnknown)
	var configFileErr error
	if err := flags.NewIniParser(parser).ParseFile(configFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\nUse %s -h to show usage\n", err, appName)
			return nil, nil, err
		}
		configFileErr = err
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintf(os.Stderr, "Use %s -h to show usage\n", appName)
		}
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if len(cfg.SwarmAddrs) == 0 {
		cfg.SwarmAddrs = DefaultSwarmAddrs
	}
	if cfg.GatewayAddr == "" {
		cfg.GatewayAddr = DefaultGatewayAddr
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, nil, err
	}

	SetupLogging(cfg.LogDir, cfg.LogLevel)

	// Reported last so it doesn't show up on help output.
	if configFileErr != nil {
		log.Warningf("%v", configFileErr)
	}
	return &cfg, remainingArgs, nil
}

// validateConfig rejects peer IDs that don't decode and configs that can
// never finalize a transaction.
func validateConfig(cfg *Config) error {
	for _, id := range cfg.Notaries {
		if _, err := peer.Decode(id); err != nil {
			return fmt.Errorf("invalid notary peer ID %q: %s", id, err)
		}
	}
	for _, id := range cfg.BlockedNodes {
		if _, err := peer.Decode(id); err != nil {
			return fmt.Errorf("invalid blocked node peer ID %q: %s", id, err)
		}
	}
	for _, id := range cfg.Notaries {
		for _, blocked := range cfg.BlockedNodes {
			if id == blocked {
				return fmt.Errorf("notary %s is also a blocked node", id)
			}
		}
	}
	if (cfg.APIUsername == "") != (cfg.APIPassword == "") {
		return fmt.Errorf("apiusername and apipassword must be set together")
	}
	return nil
}

// createDefaultConfigFile writes the sample config to destinationPath with
// a random API username and password filled in.
func createDefaultConfigFile(destinationPath string) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0700); err != nil {
		return err
	}

	user, err := randomCredential()
	if err != nil {
		return err
	}
	pass, err := randomCredential()
	if err != nil {
		return err
	}

	lines := strings.SplitAfter(sampleConfig, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "; apiusername="):
			lines[i] = "apiusername=" + user + "\n"
		case strings.HasPrefix(line, "; apipassword="):
			lines[i] = "apipassword=" + pass + "\n"
		}
	}

	f, err := os.OpenFile(destinationPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(strings.Join(lines, ""))
	return err
}

func randomCredential() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// cleanAndExpandPath expands environment variables and a leading ~ and
// cleans the result.
func cleanAndExpandPath(p string) string {
	if p == "" {
		return p
	}
	if strings.HasPrefix(p, "~") {
		p = strings.Replace(p, "~", filepath.Dir(DefaultHomeDir), 1)
	}
	return filepath.Clean(os.ExpandEnv(p))
}

// SetupLogging installs the stdout backend and, if logDir is set, a
// rotating file backend. Unknown levels fall back to info.
func SetupLogging(logDir, logLevel string) {
	stdout := logging.NewBackendFormatter(logging.NewLogBackend(os.Stdout, "", 0), stdoutLogFormat)

	if logDir == "" {
		logging.SetBackend(stdout)
	} else {
		rotator := &lumberjack.Logger{
			Filename:   path.Join(logDir, defaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		file := logging.NewBackendFormatter(logging.NewLogBackend(rotator, "", 0), fileLogFormat)
		logging.SetBackend(stdout, file)
	}

	logging.SetLevel(parseLogLevel(logLevel), "")
}

func parseLogLevel(logLevel string) logging.Level {
	level, err := logging.LogLevel(strings.ToUpper(logLevel))
	if err != nil {
		return logging.INFO
	}
	return level
}

const sampleConfig = `[Application Options]

; The directory to store data such as the ledger database and logs.
; datadir=

; The directory to write rotating log files to.
; logdir=

; Logging level for all subsystems {debug, info, notice, warning, error, critical}
; loglevel=info

; Swarm addresses to listen on. May be repeated.
; swarmaddr=/ip4/0.0.0.0/tcp/4101
; swarmaddr=/ip6/::/tcp/4101

; Peers to connect to on startup. May be repeated.
; bootstrapaddr=/dns4/notary.example.com/tcp/4101/p2p/12D3KooW...

; Address of the HTTP API.
; gatewayaddr=/ip4/127.0.0.1/tcp/4102

; Peer IDs of the notaries this node may finalize transactions with.
; notary=12D3KooW...

; Run the notary service on this node.
; notarymode=1

; Use the test network.
; testnet=1

; Peer IDs to refuse sessions from.
; blockednodes=

; API authentication.
; apiusername=
; apipassword=
; apicookie=
; apiallowedips=127.0.0.1
; apinocors=1
`
