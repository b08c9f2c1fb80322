package pipeline

import (
	"fmt"
	"io"
	"io/ioutil"

	"github.com/ryanuber/go-glob"
	"gopkg.in/yaml.v2"
)

// Checkout strategy names accepted in definitions; they map onto the
// git.EnsureStrategy implementations.
const (
	CheckoutFreshClone  = "fresh-clone"
	CheckoutMarkerCheck = "marker-check"
)

// Restart strategy names accepted in definitions.
const (
	RestartProcess = "process"
	RestartService = "service"
)

// Definition is the declarative form of a pipeline. The two built-in
// definitions are redundant alternative encodings of nearly the same
// flow; they differ in branch gating, test failure policy, checkout
// idempotency, and restart mechanism, and those differences are kept.
type Definition struct {
	Name string `yaml:"name"`

	// Branches is a list of glob patterns gating which branches
	// trigger this pipeline. Empty means all branches.
	Branches []string `yaml:"branches"`

	CheckoutStrategy string `yaml:"checkoutStrategy"`

	// ContinueOnTestFailure makes deploy proceed regardless of the
	// test outcome.
	ContinueOnTestFailure bool `yaml:"continueOnTestFailure"`

	TestCommand string `yaml:"testCommand"`

	Deploy DeployDefinition `yaml:"deploy"`
}

type DeployDefinition struct {
	Restart string `yaml:"restart"`

	// Command starts the application when Restart is "process".
	Command string `yaml:"command"`

	// Unit names the service unit when Restart is "service".
	Unit string `yaml:"unit"`

	CreateMissingBranch bool `yaml:"createMissingBranch"`
}

type definitionFile struct {
	Pipelines []Definition `yaml:"pipelines"`
}

// ParseDefinitions reads pipeline definitions from YAML.
func ParseDefinitions(r io.Reader) ([]Definition, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var file definitionFile
	if err := yaml.UnmarshalStrict(b, &file); err != nil {
		return nil, err
	}
	for i, d := range file.Pipelines {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("pipeline %d (%q): %v", i, d.Name, err)
		}
	}
	return file.Pipelines, nil
}

func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("pipeline must have a name")
	}
	switch d.CheckoutStrategy {
	case CheckoutFreshClone, CheckoutMarkerCheck:
	default:
		return fmt.Errorf("unknown checkout strategy %q (one of {%s, %s})", d.CheckoutStrategy, CheckoutFreshClone, CheckoutMarkerCheck)
	}
	switch d.Deploy.Restart {
	case RestartProcess:
		if d.Deploy.Command == "" {
			return fmt.Errorf("restart strategy %q needs a command", RestartProcess)
		}
	case RestartService:
		if d.Deploy.Unit == "" {
			return fmt.Errorf("restart strategy %q needs a unit name", RestartService)
		}
	default:
		return fmt.Errorf("unknown restart strategy %q (one of {%s, %s})", d.Deploy.Restart, RestartProcess, RestartService)
	}
	return nil
}

// MatchesBranch applies the branch gate. Patterns are globs, so
// `release/*` works as well as literal branch names.
func (d Definition) MatchesBranch(branch string) bool {
	if len(d.Branches) == 0 {
		return true
	}
	for _, pattern := range d.Branches {
		if glob.Glob(pattern, branch) {
			return true
		}
	}
	return false
}

// Fallbacks for the built-in definitions when the daemon's
// configuration doesn't name a start command or service unit.
const (
	DefaultStartCommand = "./venv/bin/python app.py"
	DefaultServiceUnit  = "flaskapp.service"
)

// DefaultDefinitions returns the two built-in pipeline encodings,
// started with the command and restarting the unit given; empty values
// get the usual defaults.
func DefaultDefinitions(startCmd, serviceUnit string) []Definition {
	if startCmd == "" {
		startCmd = DefaultStartCommand
	}
	if serviceUnit == "" {
		serviceUnit = DefaultServiceUnit
	}
	return []Definition{
		{
			// Webhook-per-push flow: deploy always proceeds, test
			// failures are recorded but swallowed.
			Name:                  "push-deploy",
			CheckoutStrategy:      CheckoutFreshClone,
			ContinueOnTestFailure: true,
			Deploy: DeployDefinition{
				Restart: RestartProcess,
				Command: startCmd,
			},
		},
		{
			// Gated flow: only staging and main, failing tests block
			// the deploy, and the remote side restarts a service unit.
			Name:             "gated-deploy",
			Branches:         []string{"staging", "main"},
			CheckoutStrategy: CheckoutMarkerCheck,
			Deploy: DeployDefinition{
				Restart:             RestartService,
				Unit:                serviceUnit,
				CreateMissingBranch: true,
			},
		},
	}
}
