package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/application/ports"
	domainservices "mindmap-backend/domain/services"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "MESSAGE: hello\nTOPIC: Soil | Test the pH", "parse", "-")
	require.NoError(t, err)

	var p domainservices.Proposal
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, domainservices.FormatLines, p.Format)
	assert.Equal(t, "hello", p.AssistantMessage)
	require.Len(t, p.Nodes, 1)
	assert.Equal(t, "Soil", p.Nodes[0].Label)
}

func TestMergeCommand_FreshThenSnapshot(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "one.json", `{"assistantResponse":"ok","updatedMindMap":{"nodes":[{"id":"a","label":"Soil"}],"edges":[{"source":"root","target":"a"}]}}`)
	second := writeFile(t, dir, "two.txt", "TOPIC: Seeds")
	snapPath := filepath.Join(dir, "snap.json")

	out, err := run(t, "", "merge", "--goal", "Garden", "--out", snapPath, first, second)
	require.NoError(t, err)

	var result mergeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "json", result.Steps[0].Format)
	assert.Equal(t, "lines", result.Steps[1].Format)
	assert.Len(t, result.Session.Nodes, 3)

	data, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	var snap ports.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "Garden", snap.Goal)

	third := writeFile(t, dir, "three.txt", "TOPIC: Compost")
	out, err = run(t, "", "merge", "--snapshot", snapPath, "--outline", third)
	require.NoError(t, err)
	assert.Contains(t, out, "- Garden")
	assert.Contains(t, out, "Seeds")
	assert.Contains(t, out, "Compost")
}

func TestMergeCommand_RequiresGoalOrSnapshot(t *testing.T) {
	_, err := run(t, "", "merge", "whatever.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--goal")
}
