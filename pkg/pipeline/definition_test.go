package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const definitionsYAML = `
pipelines:
  - name: push-deploy
    checkoutStrategy: fresh-clone
    continueOnTestFailure: true
    deploy:
      restart: process
      command: ./venv/bin/python app.py
  - name: gated-deploy
    branches: [staging, main]
    checkoutStrategy: marker-check
    deploy:
      restart: service
      unit: flaskapp.service
      createMissingBranch: true
`

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions(strings.NewReader(definitionsYAML))
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, defs, 2)

	assert.Equal(t, "push-deploy", defs[0].Name)
	assert.Equal(t, CheckoutFreshClone, defs[0].CheckoutStrategy)
	assert.True(t, defs[0].ContinueOnTestFailure)
	assert.Equal(t, RestartProcess, defs[0].Deploy.Restart)

	assert.Equal(t, []string{"staging", "main"}, defs[1].Branches)
	assert.False(t, defs[1].ContinueOnTestFailure)
	assert.Equal(t, "flaskapp.service", defs[1].Deploy.Unit)
	assert.True(t, defs[1].Deploy.CreateMissingBranch)
}

func TestParseDefinitionsRejectsUnknownFields(t *testing.T) {
	_, err := ParseDefinitions(strings.NewReader(`
pipelines:
  - name: p
    checkoutStrategy: fresh-clone
    retries: 3
    deploy:
      restart: process
      command: run
`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, invalid := range []Definition{
		{},
		{Name: "p"},
		{Name: "p", CheckoutStrategy: "sideways"},
		{Name: "p", CheckoutStrategy: CheckoutFreshClone},
		{Name: "p", CheckoutStrategy: CheckoutFreshClone, Deploy: DeployDefinition{Restart: RestartProcess}},
		{Name: "p", CheckoutStrategy: CheckoutFreshClone, Deploy: DeployDefinition{Restart: RestartService}},
	} {
		assert.Error(t, invalid.Validate(), "%+v", invalid)
	}

	for _, def := range DefaultDefinitions("", "") {
		assert.NoError(t, def.Validate())
	}
}

func TestMatchesBranch(t *testing.T) {
	gateless := Definition{Name: "p"}
	assert.True(t, gateless.MatchesBranch("anything"))

	gated := Definition{Name: "p", Branches: []string{"staging", "main", "release/*"}}
	assert.True(t, gated.MatchesBranch("main"))
	assert.True(t, gated.MatchesBranch("staging"))
	assert.True(t, gated.MatchesBranch("release/1.2"))
	assert.False(t, gated.MatchesBranch("feature/x"))
}

func TestDefaultDefinitionsDiffer(t *testing.T) {
	defs := DefaultDefinitions("", "")
	assert.Len(t, defs, 2)

	push, gated := defs[0], defs[1]

	// The two built-in flows deliberately disagree on every policy
	// axis; see the Definition doc comment.
	assert.True(t, push.ContinueOnTestFailure)
	assert.False(t, gated.ContinueOnTestFailure)
	assert.NotEqual(t, push.CheckoutStrategy, gated.CheckoutStrategy)
	assert.NotEqual(t, push.Deploy.Restart, gated.Deploy.Restart)
	assert.Empty(t, push.Branches)
	assert.NotEmpty(t, gated.Branches)
}

func TestDefaultDefinitionsConfigurable(t *testing.T) {
	defs := DefaultDefinitions("", "")
	assert.Equal(t, DefaultStartCommand, defs[0].Deploy.Command)
	assert.Equal(t, DefaultServiceUnit, defs[1].Deploy.Unit)

	defs = DefaultDefinitions("./venv/bin/gunicorn app:app", "webapp.service")
	assert.Equal(t, "./venv/bin/gunicorn app:app", defs[0].Deploy.Command)
	assert.Equal(t, "webapp.service", defs[1].Deploy.Unit)
}
