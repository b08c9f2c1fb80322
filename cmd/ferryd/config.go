package main

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deployferry/ferry/pkg/config"
)

// defineConfigFlags defines the flags that can also be set in
// a config file. These need special treatment, because some care must
// be taken to match them ("bind") with config file field names.
func defineConfigFlags(fs *pflag.FlagSet, bail func(error)) {

	bind := func(fieldName, flagName string) error {
		configStruct := reflect.TypeOf(config.Config{})
		field, ok := configStruct.FieldByName(fieldName)
		if !ok {
			return fmt.Errorf("attempt to bind a flag to a field not present in config.Config, %q", fieldName)
		}
		tag := field.Tag
		// this parallels the logic in
		// github.com/mitchellh/mapstructure, except that we want to
		// bail if a field is mentioned that is marked ignore, like
		// this: `mapstructure:"-"`
		mappedName := field.Name
		mapstructureTagParts := strings.Split(tag.Get("mapstructure"), ",")
		if namePart := mapstructureTagParts[0]; namePart != "" {
			if namePart == "-" { // means ignore this field
				return fmt.Errorf(`attempt to bind a flag to a config field tagged as ignored, %q`, field.Name)
			}
			mappedName = namePart
		}
		return viper.BindPFlag(mappedName, fs.Lookup(flagName))
	}

	bindOrBail := func(fieldName, flagName string) {
		if err := bind(fieldName, flagName); err != nil {
			bail(err)
		}
	}

	defineString := func(fieldName, flagName, def, desc string) {
		fs.String(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringP := func(fieldName, flagName, short, def, desc string) {
		fs.StringP(flagName, short, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineStringSlice := func(fieldName, flagName string, def []string, desc string) {
		fs.StringSlice(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineDuration := func(fieldName, flagName string, def time.Duration, desc string) {
		fs.Duration(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineInt := func(fieldName, flagName string, def int, desc string) {
		fs.Int(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineFloat64 := func(fieldName, flagName string, def float64, desc string) {
		fs.Float64(flagName, def, desc)
		bindOrBail(fieldName, flagName)
	}

	defineString("LogFormat", "log-format", "fmt", "change the log format.")
	defineStringP("Listen", "listen", "l", ":3030", "listen address where /metrics and API will be served")
	defineString("ListenMetrics", "listen-metrics", "", "listen address for /metrics endpoint")

	// Source repository
	defineString("GitURL", "git-url", "", "URL of git repo with the application source; e.g., git@github.com:example/flaskapp")
	defineString("GitBranch", "git-branch", "main", "branch of git repo to deploy by default")
	defineDuration("GitTimeout", "git-timeout", 20*time.Second, "duration after which git operations time out")
	defineDuration("GitPollInterval", "git-poll-interval", 5*time.Minute, "period at which to poll git repo for new commits")

	// Pipelines
	defineStringSlice("PipelineFile", "pipeline-file", []string{}, "paths of pipeline definition files; when none are given, the two built-in pipelines are used")
	defineDuration("StageTimeout", "stage-timeout", 0, "duration after which a pipeline stage times out; 0 means no timeout")
	defineString("WorkDir", "work-dir", "/var/lib/ferryd", "parent directory for local working copies")
	defineString("AppDir", "app-dir", "app", "application directory name, used locally and on the target host")

	// Python toolchain
	defineString("PythonInterpreter", "python-interpreter", "python3", "interpreter used for creating virtualenvs")
	defineString("TestCommand", "test-command", "pytest", "command run inside the virtualenv by the test stage")

	// Deploy target
	defineString("RemoteHost", "remote-host", "", "host to deploy to, host or host:port")
	defineString("RemoteUser", "remote-user", "", "user to connect to the deploy target as")
	defineString("RemoteKeyPath", "remote-key-path", "", "path of the private key used for the deploy target")
	defineString("RemoteAppDir", "remote-app-dir", "", "directory on the deploy target holding the application; defaults to ~/<app-dir>")
	defineString("RemoteSecretDir", "remote-secret-dir", "", "directory of a mounted secret supplying {host, user, identity} files; takes precedence over the remote-* flags")
	defineString("RemoteServiceUnit", "remote-service-unit", "flaskapp.service", "service unit restarted by pipelines using the service restart strategy")
	defineString("RemoteStartCmd", "remote-start-cmd", "./venv/bin/python app.py", "command used by pipelines using the process restart strategy")

	// Webhook trigger
	defineFloat64("NotifyRPS", "notify-rps", 1, "maximum webhook notifications acted on per second; excess notifications are dropped")
	defineInt("NotifyBurst", "notify-burst", 5, "burst of webhook notifications allowed over notify-rps")

	defineInt("RunHistoryLimit", "run-history-limit", 100, "number of past runs kept in memory")
}
