package plan_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntwork-io/lz-teardown/internal/organization"
	"github.com/gruntwork-io/lz-teardown/internal/pipeline"
	"github.com/gruntwork-io/lz-teardown/internal/plan"
	"github.com/gruntwork-io/lz-teardown/internal/scope"
)

const (
	mgmt   = "111111111111"
	member = "222222222222"
)

func actions() []pipeline.StageAction {
	return []pipeline.StageAction{
		{StageName: "Prepare", StageOrder: 3, Order: 1, Name: "Prepare", Stage: "prepare", StackNamePrefix: "PrepareStack", ManagementOnly: true},
		{StageName: "Bootstrap", StageOrder: 5, Order: 1, Name: "Bootstrap", Stage: "bootstrap", StackNamePrefix: "CDKToolkit", Bootstrap: true},
		{StageName: "Logging", StageOrder: 7, Order: 1, Name: "Key", Stage: "key", StackNamePrefix: "KeyStack"},
		{StageName: "Deploy", StageOrder: 10, Order: 1, Name: "Security", Stage: "security", StackNamePrefix: "SecurityStack"},
		{StageName: "Deploy", StageOrder: 10, Order: 1, Name: "Network_Prepare", Stage: "network-prep", StackNamePrefix: "NetworkPrepStack"},
		{StageName: "Deploy", StageOrder: 10, Order: 2, Name: "Operations", Stage: "operations", StackNamePrefix: "OperationsStack"},
	}
}

func input(filter scope.Filter) *plan.Input {
	return &plan.Input{
		PipelineName:       "AWSAccelerator-Pipeline",
		ManagementAccount:  mgmt,
		ExecutingAccount:   mgmt,
		HomeRegion:         "us-east-1",
		InstallerStackName: "AWSAccelerator-InstallerStack",
		ConfigSource:       pipeline.ConfigSource{Provider: pipeline.ProviderCodeCommit, RepositoryName: "aws-accelerator-config"},
		Actions:            actions(),
		Accounts:           []organization.Account{{AccountID: mgmt}, {AccountID: member}},
		Regions:            []string{"us-east-1", "eu-west-1"},
		Filter:             filter,
	}
}

func TestBuildOrdersStepsByDescendingRank(t *testing.T) {
	t.Parallel()

	p, err := plan.Build(input(scope.Filter{Mode: scope.ModeFullDestroy}))
	require.NoError(t, err)

	var ranks []plan.Rank
	for _, step := range p.Steps {
		ranks = append(ranks, step.Rank)
	}

	assert.Equal(t, []plan.Rank{{StageOrder: 10, Order: 2}, {StageOrder: 10, Order: 1}, {StageOrder: 7, Order: 1}, {StageOrder: 3, Order: 1}}, ranks)

	// Two actions share rank 10.1 and each fans out to 2 accounts x 2 regions.
	require.Len(t, p.Steps[1].Entries, 8)
	assert.Equal(t, "AWSAccelerator-SecurityStack-111111111111-us-east-1", p.Steps[1].Entries[0].StackName)

	prepare := p.Steps[3].Entries
	require.Len(t, prepare, 1)
	assert.Equal(t, "AWSAccelerator-PrepareStack-111111111111-us-east-1", prepare[0].StackName)
	assert.True(t, prepare[0].DeferReaping)

	require.NotNil(t, p.PipelineStack)
	assert.Equal(t, "AWSAccelerator-PipelineStack-111111111111-us-east-1", p.PipelineStack.StackName)
	require.NotNil(t, p.InstallerStack)
	assert.Equal(t, "aws-accelerator-config", p.ConfigRepo)
	assert.Len(t, p.Bootstrap, 4)
	assert.Len(t, p.SweepPrefixes, 3)
	require.NoError(t, p.Validate())
}

func TestBuildEveryHigherRankPrecedesLowerRank(t *testing.T) {
	t.Parallel()

	p, err := plan.Build(input(scope.Filter{Mode: scope.ModeFullDestroy}))
	require.NoError(t, err)

	entries := p.Entries()
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			assert.GreaterOrEqual(t, entries[i].Rank().Compare(entries[j].Rank()), 0, "%s before %s", entries[i].StackName, entries[j].StackName)
		}
	}
}

func TestBuildDefersReapingOnlyForPrepare(t *testing.T) {
	t.Parallel()

	p, err := plan.Build(input(scope.Filter{Mode: scope.ModeFullDestroy}))
	require.NoError(t, err)

	var deferred int

	for _, entry := range p.Entries() {
		assert.Equal(t, entry.Stage == "prepare", entry.DeferReaping, entry.StackName)

		if entry.DeferReaping {
			deferred++
		}
	}

	assert.Equal(t, 1, deferred)

	for _, entry := range p.Bootstrap {
		assert.False(t, entry.DeferReaping, entry.StackName)
	}
}

func TestBuildScopeVariants(t *testing.T) {
	t.Parallel()

	t.Run("delete accelerator keeping pipeline and bootstraps", func(t *testing.T) {
		t.Parallel()

		in := input(scope.Filter{Mode: scope.ModeDeleteAccelerator, KeepPipelineAndConfig: true, KeepBootstraps: true})
		resolved, err := scope.Resolve(in.Actions, in.Filter)
		require.NoError(t, err)

		in.Actions = resolved

		p, err := plan.Build(in)
		require.NoError(t, err)

		assert.Nil(t, p.PipelineStack)
		assert.Nil(t, p.InstallerStack)
		assert.Empty(t, p.ConfigRepo)
		assert.Empty(t, p.Bootstrap)
	})

	t.Run("external pipeline never deletes bootstraps", func(t *testing.T) {
		t.Parallel()

		in := input(scope.Filter{Mode: scope.ModeFullDestroy})
		in.External = true
		in.ExecutingAccount = "999999999999"

		p, err := plan.Build(in)
		require.NoError(t, err)

		assert.Empty(t, p.Bootstrap)
		assert.Equal(t, "999999999999", p.PipelineStack.AccountID)
	})

	t.Run("keep data disables reaping and sweep", func(t *testing.T) {
		t.Parallel()

		p, err := plan.Build(input(scope.Filter{Mode: scope.ModeDeleteAccelerator, KeepData: true}))
		require.NoError(t, err)

		assert.False(t, p.ReapData)
		assert.Empty(t, p.SweepPrefixes)
	})
}

func TestBuildRequiresHomeRegion(t *testing.T) {
	t.Parallel()

	in := input(scope.Filter{Mode: scope.ModeFullDestroy})
	in.HomeRegion = ""

	_, err := plan.Build(in)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	t.Parallel()

	p, err := plan.Build(input(scope.Filter{Mode: scope.ModeFullDestroy}))
	require.NoError(t, err)

	var text bytes.Buffer

	require.NoError(t, p.Render(&text, plan.FormatText))
	assert.Contains(t, text.String(), "AWSAccelerator-OperationsStack-222222222222-eu-west-1")
	assert.Contains(t, text.String(), "reaping deferred")

	var raw bytes.Buffer

	require.NoError(t, p.Render(&raw, plan.FormatJSON))

	var decoded map[string]any

	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	assert.Equal(t, "full-destroy", decoded["scope"])

	require.Error(t, p.Render(&raw, "yaml"))
}
