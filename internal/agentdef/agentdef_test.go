package agentdef

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicedesk/voicedesk/internal/db/sqlite"
)

func validDefinition() *Definition {
	return &Definition{
		Owner:    "tenant-1",
		Name:     "Front desk",
		Voice:    "nova",
		Language: "en-US",
	}
}

func TestNormalize(t *testing.T) {
	d := &Definition{Name: "  Desk ", Voice: "Nova", Language: "pt-br", Icon: Icon{Color: "#AABBCC"}}
	d.Normalize()
	assert.Equal(t, "Desk", d.Name)
	assert.Equal(t, "nova", d.Voice)
	assert.Equal(t, "pt-BR", d.Language)
	assert.Equal(t, Icon{Position: DefaultIconPosition, Size: DefaultIconSize, Color: "#aabbcc"}, d.Icon)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Definition)
		wantErr string
	}{
		{"valid", func(d *Definition) {}, ""},
		{"missing name", func(d *Definition) { d.Name = "" }, "name is required"},
		{"missing owner", func(d *Definition) { d.Owner = "" }, "owner is required"},
		{"unknown voice", func(d *Definition) { d.Voice = "robot" }, `unsupported voice "robot"`},
		{"unsupported language", func(d *Definition) { d.Language = "nl-NL" }, `unsupported language "nl-NL"`},
		{"garbage language", func(d *Definition) { d.Language = "not a tag" }, "unsupported language"},
		{"bad icon position", func(d *Definition) { d.Icon.Position = "middle" }, "icon.position"},
		{"short color", func(d *Definition) { d.Icon.Color = "#abc" }, "#rrggbb"},
		{"bad id", func(d *Definition) { d.ID = "agent-1" }, "is not a uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDefinition()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.ErrorIs(t, err, ErrInvalidAgentDef)
			assert.Contains(t, err.ErrorAll(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	err := (&Definition{}).Validate()
	require.NotNil(t, err)
	for _, field := range []string{"owner", "name", "voice", "language"} {
		assert.Contains(t, err.ErrorAll(), field+" is required")
	}
}

const agentsYAML = `
owner: tenant-1
name: Front desk
voice: alloy
language: en-us
welcomeMessage: Hi there
icon:
  position: top-left
  color: "#112233"
---
---
id: 7c9e6679-7425-40de-944b-e07fc1f90ae7
owner: tenant-1
name: After hours
voice: shimmer
language: ja-JP
`

func TestParse(t *testing.T) {
	defs, err := Parse([]byte(agentsYAML))
	require.Nil(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Front desk", defs[0].Name)
	assert.Equal(t, "Hi there", defs[0].WelcomeMessage)
	assert.Equal(t, "top-left", defs[0].Icon.Position)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", defs[1].ID)

	_, err = Parse([]byte("name: x\nvoices: alloy\n"))
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrUnreadableSource)

	_, err = Parse([]byte("name: [unterminated\n"))
	require.NotNil(t, err)

	defs, err = Parse([]byte("---\n"))
	require.Nil(t, err)
	assert.Empty(t, defs)
}

func TestParseKeepsScalarNamesAsStrings(t *testing.T) {
	for _, name := range []string{"y", "n", "yes", "No", "on", "Off", "~y"} {
		defs, err := Parse([]byte("owner: x\nname: " + name + "\nvoice: nova\nlanguage: en-US\n"))
		require.Nil(t, err, name)
		require.Len(t, defs, 1, name)
		assert.Equal(t, name, defs[0].Name)
		assert.Nil(t, defs[0].Validate(), name)
	}

	_, err := Parse([]byte("- owner: x\n"))
	require.NotNil(t, err)
	assert.ErrorIs(t, err, ErrUnreadableSource)
}

func TestMarshalRoundTrips(t *testing.T) {
	in, err := Parse([]byte(agentsYAML))
	require.Nil(t, err)
	yes := validDefinition()
	yes.Name = "yes"
	in = append(in, yes)

	out, err := Marshal(in)
	require.Nil(t, err)
	assert.Contains(t, string(out), "---\n")

	back, err := Parse(out)
	require.Nil(t, err)
	assert.Equal(t, in, back)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "agents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	defs, perr := Parse([]byte(agentsYAML))
	require.Nil(t, perr)

	agents, aerr := Apply(ctx, store, defs)
	require.Nil(t, aerr)
	require.Len(t, agents, 2)
	assert.NotEmpty(t, defs[0].ID)
	assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", agents[1].ID.String())

	got, gerr := store.GetAgent(ctx, agents[0].ID)
	require.Nil(t, gerr)
	assert.Equal(t, "en-US", got.Language)
	assert.Equal(t, "#112233", got.IconColor)
	assert.Equal(t, DefaultIconSize, got.IconSize)
	assert.Equal(t, *defs[0], *FromModel(got))

	// reapplying updates in place
	defs[1].Name = "Night shift"
	_, aerr = Apply(ctx, store, defs)
	require.Nil(t, aerr)
	list, lerr := store.ListAgents(ctx, "tenant-1")
	require.Nil(t, lerr)
	assert.Len(t, list, 2)

	bad := validDefinition()
	bad.Voice = "robot"
	_, aerr = Apply(ctx, store, []*Definition{validDefinition(), bad})
	require.NotNil(t, aerr)
	list, lerr = store.ListAgents(ctx, "tenant-1")
	require.Nil(t, lerr)
	assert.Len(t, list, 2)
}
