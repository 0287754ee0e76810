package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrationSettingsValidate(t *testing.T) {
	valid := IntegrationSettings{
		Contifico: &ContificoSettings{Env: "test", APIKeys: APIKeys{Test: "k-test"}},
	}
	assert.NoError(t, valid.Validate(IntegrationContifico))

	empty := IntegrationSettings{}
	assert.ErrorIs(t, empty.Validate(IntegrationContifico), ErrSettingsMismatch)

	// prod env configured but only the test key present
	wrongEnv := IntegrationSettings{
		Contifico: &ContificoSettings{Env: "prod", APIKeys: APIKeys{Test: "k-test"}},
	}
	assert.ErrorIs(t, wrongEnv.Validate(IntegrationContifico), ErrMissingAPIKey)

	assert.Error(t, valid.Validate("sap"))
}

func TestActiveAPIKeySelectsEnvironment(t *testing.T) {
	s := ContificoSettings{Env: "test", APIKeys: APIKeys{Test: "k-test", Prod: "k-prod"}}
	assert.Equal(t, "k-test", s.ActiveAPIKey())

	s.Env = "prod"
	assert.Equal(t, "k-prod", s.ActiveAPIKey())
}
