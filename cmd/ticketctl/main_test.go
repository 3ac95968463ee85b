package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/maintenance-ticketing/internal/auth"
	"github.com/fieldops/maintenance-ticketing/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommandMintsParsableToken(t *testing.T) {
	out, err := run(t, "token", "--actor-id", "tech-9", "--name", "Tono", "--role", "technician", "--secret", "s3cret")
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("s3cret", 60).ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{ID: "tech-9", Name: "Tono", Role: domain.RoleTechnician}, claims.Actor())
}

func TestTokenCommandReadsSecretFromEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "from-env")

	out, err := run(t, "token", "--actor-id", "adm-1", "--role", "admin")
	require.NoError(t, err)
	_, err = auth.NewTokenManager("from-env", 60).ParseToken(strings.TrimSpace(out))
	assert.NoError(t, err)
}

func TestTokenCommandValidatesInput(t *testing.T) {
	_, err := run(t, "token", "--role", "admin")
	assert.ErrorContains(t, err, "--actor-id")

	_, err = run(t, "token", "--actor-id", "x", "--role", "janitor")
	assert.ErrorContains(t, err, "unknown role")
}

func TestSLACommand(t *testing.T) {
	out, err := run(t, "--json", "sla")
	require.NoError(t, err)
	var defs []domain.PrioritySLADefinition
	require.NoError(t, json.Unmarshal([]byte(out), &defs))
	require.Len(t, defs, 4)
	assert.Equal(t, domain.PrioritySLADefinition{Level: 1, ResponseHours: 1, ResolutionHours: 4}, defs[0])

	out, err = run(t, "sla")
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")
	assert.Contains(t, out, "72")
}

func TestWorkflowCommand(t *testing.T) {
	out, err := run(t, "--json", "workflow", "--category", "pm")
	require.NoError(t, err)
	var table map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Equal(t, []string{"open", "cancelled"}, table["draft"])
	assert.Empty(t, table["closed"])

	out, err = run(t, "--json", "workflow", "--category", "cm")
	require.NoError(t, err)
	table = nil
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.NotContains(t, table, "draft")

	_, err = run(t, "workflow", "--category", "xx")
	assert.ErrorContains(t, err, "unknown category")
}

func TestGeofenceCommand(t *testing.T) {
	out, err := run(t, "geofence", "1.3521", "103.8198", "1.3521", "103.8198")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "inside"), out)

	out, err = run(t, "geofence", "--tolerance", "10", "1.3521", "103.8198", "1.3530", "103.8198")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "outside"), out)
	assert.Contains(t, out, "outside tolerance")

	_, err = run(t, "geofence", "1", "2", "3")
	assert.Error(t, err)
}
