package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/deployferry/ferry/pkg/config"
	"github.com/deployferry/ferry/pkg/daemon"
	"github.com/deployferry/ferry/pkg/git"
	daemonhttp "github.com/deployferry/ferry/pkg/http/daemon"
	"github.com/deployferry/ferry/pkg/job"
	"github.com/deployferry/ferry/pkg/pipeline"
	"github.com/deployferry/ferry/pkg/ssh"
)

var version string

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  ferryd is a deployment daemon.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}

	bail := func(err error) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	versionFlag := fs.Bool("version", false, "get version number")
	configFile := fs.String("config-file", filepath.Join(config.ConfigPath, config.ConfigName), "path of a config file supplying values for the flags below")
	defineConfigFlags(fs, bail)

	if err := fs.Parse(os.Args[1:]); err != nil {
		bail(err)
	}

	if version == "" {
		version = "unversioned"
	}
	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	// Config file, if there is one; flags given on the command line
	// take precedence over its values.
	cfgFromFile := true
	viper.SetConfigFile(*configFile)
	viper.SetConfigType(config.ConfigType)
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound || os.IsNotExist(err) {
			cfgFromFile = false
		} else {
			bail(err)
		}
	}
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		bail(err)
	}
	if cfgFromFile {
		if err := cfg.IsValid(); err != nil {
			bail(err)
		}
	}

	// Logger domain.
	var logger log.Logger
	{
		switch cfg.LogFormat {
		case "json":
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		case "fmt":
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		default:
			bail(fmt.Errorf("unknown log format %q", cfg.LogFormat))
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	logger.Log("version", version)

	if !git.Available() {
		logger.Log("component", "git", "err", "git executable not found on PATH")
		os.Exit(1)
	}

	if cfg.GitURL == "" {
		logger.Log("err", "no application repository; supply --git-url")
		os.Exit(1)
	}

	// Deploy target component.
	var runner ssh.Runner
	{
		logger := log.With(logger, "component", "target")
		var provider config.CredentialsProvider = config.StaticCredentials{
			Host:    cfg.RemoteHost,
			User:    cfg.RemoteUser,
			KeyPath: cfg.RemoteKeyPath,
		}
		if cfg.RemoteSecretDir != "" {
			logger.Log("credentials", cfg.RemoteSecretDir)
			provider = config.FileCredentials{Dir: cfg.RemoteSecretDir}
		}
		creds, err := provider.Credentials()
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		keyring, err := ssh.NewFileKeyRing(creds.KeyPath)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		publicKey, keyPath := keyring.KeyPair()
		logger.Log("host", creds.Host, "user", creds.User, "identity", keyPath, "fingerprint", publicKey.Fingerprints["sha256"])
		runner = &ssh.Client{Host: creds.Host, User: creds.User, KeyPath: keyPath}
	}

	// Pipeline definitions.
	var defs []pipeline.Definition
	{
		logger := log.With(logger, "component", "pipelines")
		if len(cfg.PipelineFile) == 0 {
			defs = pipeline.DefaultDefinitions(cfg.RemoteStartCmd, cfg.RemoteServiceUnit)
		}
		for _, path := range cfg.PipelineFile {
			f, err := os.Open(path)
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			parsed, err := pipeline.ParseDefinitions(f)
			f.Close()
			if err != nil {
				logger.Log("file", path, "err", err)
				os.Exit(1)
			}
			defs = append(defs, parsed...)
		}
		for _, def := range defs {
			logger.Log("pipeline", def.Name, "checkout", def.CheckoutStrategy, "restart", def.Deploy.Restart)
		}
	}

	remoteAppDir := cfg.RemoteAppDir
	if remoteAppDir == "" {
		remoteAppDir = cfg.AppDir
	}
	assemble := pipeline.AssembleConfig{
		Remote:       git.Remote{URL: cfg.GitURL},
		WorkDir:      cfg.WorkDir,
		AppDir:       cfg.AppDir,
		Interpreter:  cfg.PythonInterpreter,
		TestCommand:  cfg.TestCommand,
		Runner:       runner,
		RemoteAppDir: remoteAppDir,
		GitTimeout:   cfg.GitTimeout,
		StageTimeout: cfg.StageTimeout,
	}

	// Shutdown, signalled by closing shutdown. Everything that spins
	// adds itself to shutdownWg.
	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}

	queue := job.NewQueue(shutdown, shutdownWg)

	d := daemon.New(version, logger, defs, assemble, queue,
		rate.NewLimiter(rate.Limit(cfg.NotifyRPS), cfg.NotifyBurst),
		cfg.RunHistoryLimit)

	shutdownWg.Add(1)
	go d.Loop(shutdown, shutdownWg, log.With(logger, "component", "worker"))

	if cfg.GitPollInterval > 0 {
		shutdownWg.Add(1)
		go d.PollLoop(shutdown, shutdownWg, cfg.GitBranch, cfg.GitPollInterval, cfg.GitTimeout,
			log.With(logger, "component", "poll"))
	}

	// Mechanical stuff.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// Transport domain.
	go func() {
		logger := log.With(logger, "component", "daemonhttp")
		mux := http.DefaultServeMux
		if cfg.ListenMetrics != "" {
			go func() {
				metricsMux := http.NewServeMux()
				metricsMux.Handle("/metrics", promhttp.Handler())
				logger.Log("metrics-addr", cfg.ListenMetrics)
				errc <- http.ListenAndServe(cfg.ListenMetrics, metricsMux)
			}()
		} else {
			mux.Handle("/metrics", promhttp.Handler())
		}
		handler := daemonhttp.NewHandler(d, daemonhttp.NewRouter())
		mux.Handle("/api/ferry/", http.StripPrefix("/api/ferry", handler))
		logger.Log("addr", cfg.Listen)
		errc <- http.ListenAndServe(cfg.Listen, mux)
	}()

	// Go!
	logger.Log("exiting", <-errc)
	close(shutdown)
	shutdownWg.Wait()
}
