package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph/codegraph-go/internal/models"
)

const featureSample = `
@smoke
Feature: User login

  # happy path
  Scenario: Valid credentials
    Given a registered user
    When the user submits valid credentials
    Then the session is created
    And the audit log records the login

  Scenario Outline: Rejected credentials
    Given a registered user
    When the user submits "<password>"
    Then the login is rejected
`

func TestGherkinFeatureAndScenarios(t *testing.T) {
	res := parseString(t, "features/login.feature", featureSample)

	feat := findEntity(res, models.KindBDDFeature, "User login")
	require.NotNil(t, feat)
	assert.Equal(t, "features.login.User login", feat.QualifiedName)

	sc := findEntity(res, models.KindBDDScenario, "Valid credentials")
	require.NotNil(t, sc)
	assert.Equal(t, false, sc.Attrs["outline"])
	require.NotNil(t, findRel(res, models.RelInFeature, sc.QualifiedName, feat.QualifiedName))

	outline := findEntity(res, models.KindBDDScenario, "Rejected credentials")
	require.NotNil(t, outline)
	assert.Equal(t, true, outline.Attrs["outline"])
}

func TestGherkinSteps(t *testing.T) {
	res := parseString(t, "features/login.feature", featureSample)

	given := findEntity(res, models.KindBDDStep, "a registered user")
	require.NotNil(t, given)
	assert.Equal(t, "given", given.Attrs["keyword"])
	assert.Equal(t, 1, given.Attrs["order"])

	then := findEntity(res, models.KindBDDStep, "the session is created")
	require.NotNil(t, then)
	assert.Equal(t, "then", then.Attrs["keyword"])

	// And continues the previous keyword.
	and := findEntity(res, models.KindBDDStep, "the audit log records the login")
	require.NotNil(t, and)
	assert.Equal(t, "then", and.Attrs["keyword"])
	assert.Equal(t, 4, and.Attrs["order"])
}

func TestGherkinStepsOutsideScenarioIgnored(t *testing.T) {
	src := `
Feature: Orphans
Given a step before any scenario
`
	res := parseString(t, "features/orphan.feature", src)
	for _, e := range res.Entities {
		assert.NotEqual(t, models.KindBDDStep, e.Kind)
	}
}
