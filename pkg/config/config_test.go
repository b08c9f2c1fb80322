package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	assert.Error(t, Config{}.IsValid())
	assert.Error(t, Config{ConfigVersion: "v0"}.IsValid())
	assert.NoError(t, Config{ConfigVersion: FerryConfigVersion}.IsValid())
}
