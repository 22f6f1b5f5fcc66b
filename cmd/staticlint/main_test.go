package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled(t *testing.T) {
	patterns := []string{"SA*", "ST1005"}

	assert.True(t, enabled("SA1000", patterns))
	assert.True(t, enabled("ST1005", patterns))
	assert.False(t, enabled("ST1000", patterns))
	assert.False(t, enabled("S1000", patterns))
}

func TestAnalyzersIncludeCustomChecks(t *testing.T) {
	var names []string
	for _, a := range analyzers(configData{Staticcheck: []string{"SA4006"}}) {
		names = append(names, a.Name)
	}

	assert.Contains(t, names, "noabruptexit")
	assert.Contains(t, names, "ineffassign")
	assert.Contains(t, names, "nilerr")
	assert.Contains(t, names, "SA4006")
	assert.NotContains(t, names, "SA1000")
}

func TestAnalyzersIncludeStylecheck(t *testing.T) {
	var names []string
	for _, a := range analyzers(configData{Staticcheck: []string{"ST1005"}}) {
		names = append(names, a.Name)
	}

	assert.Contains(t, names, "ST1005")
	assert.NotContains(t, names, "ST1000")
}
