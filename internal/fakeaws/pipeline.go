package fakeaws

import (
	"encoding/json"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
)

// PipelineStage describes one stage of a fake landing zone pipeline.
type PipelineStage struct {
	Name    string
	Actions []PipelineAction
}

// PipelineAction describes one action. RawEnv, when set, replaces the encoded environment.
type PipelineAction struct {
	Env      map[string]string
	Name     string
	Provider string
	RawEnv   string
	Config   map[string]string
	RunOrder int32
}

// DeployAction is a CodeBuild action deploying the given accelerator stage.
func DeployAction(name string, runOrder int32, stage string) PipelineAction {
	return PipelineAction{
		Name:     name,
		Provider: "CodeBuild",
		RunOrder: runOrder,
		Env:      map[string]string{"CDK_OPTIONS": "deploy --stage " + stage},
	}
}

// BuildPipeline assembles a pipeline declaration.
func BuildPipeline(name string, stages ...PipelineStage) *cptypes.PipelineDeclaration {
	decl := &cptypes.PipelineDeclaration{Name: aws.String(name)}

	for _, stage := range stages {
		sd := cptypes.StageDeclaration{Name: aws.String(stage.Name)}

		for _, action := range stage.Actions {
			config := map[string]string{}
			for k, v := range action.Config {
				config[k] = v
			}

			switch {
			case action.RawEnv != "":
				config["EnvironmentVariables"] = action.RawEnv
			case len(action.Env) > 0:
				config["EnvironmentVariables"] = encodeEnv(action.Env)
			}

			runOrder := action.RunOrder
			if runOrder == 0 {
				runOrder = 1
			}

			sd.Actions = append(sd.Actions, cptypes.ActionDeclaration{
				Name:          aws.String(action.Name),
				RunOrder:      aws.Int32(runOrder),
				Configuration: config,
				ActionTypeId: &cptypes.ActionTypeId{
					Category: cptypes.ActionCategoryBuild,
					Owner:    cptypes.ActionOwnerAws,
					Provider: aws.String(action.Provider),
					Version:  aws.String("1"),
				},
			})
		}

		decl.Stages = append(decl.Stages, sd)
	}

	return decl
}

func encodeEnv(env map[string]string) string {
	type variable struct {
		Name  string `json:"name"`
		Value string `json:"value"`
		Type  string `json:"type"`
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}

	sort.Strings(names)

	vars := make([]variable, 0, len(env))
	for _, name := range names {
		vars = append(vars, variable{Name: name, Value: env[name], Type: "PLAINTEXT"})
	}

	body, _ := json.Marshal(vars) //nolint:errchkjson

	return string(body)
}

// LandingZoneStages returns the stage layout of a deployed accelerator pipeline.
func LandingZoneStages(mgmtAccount, mgmtRole, configRepo string) []PipelineStage {
	bootstrap := DeployAction("Bootstrap", 1, "bootstrap")
	bootstrap.Env = map[string]string{
		"CDK_OPTIONS":                  "bootstrap",
		"MANAGEMENT_ACCOUNT_ID":        mgmtAccount,
		"MANAGEMENT_ACCOUNT_ROLE_NAME": mgmtRole,
		"ACCELERATOR_PREFIX":           "AWSAccelerator",
	}

	return []PipelineStage{
		{Name: "Source", Actions: []PipelineAction{
			{Name: "Accelerator", Provider: "CodeCommit", Config: map[string]string{"RepositoryName": "aws-accelerator", "BranchName": "main"}},
			{Name: "Configuration", Provider: "CodeCommit", Config: map[string]string{"RepositoryName": configRepo, "BranchName": "main"}},
		}},
		{Name: "Build", Actions: []PipelineAction{{Name: "Build", Provider: "CodeBuild"}}},
		{Name: "Prepare", Actions: []PipelineAction{DeployAction("Prepare", 1, "prepare")}},
		{Name: "Accounts", Actions: []PipelineAction{DeployAction("Accounts", 1, "accounts")}},
		{Name: "Bootstrap", Actions: []PipelineAction{bootstrap}},
		{Name: "Review", Actions: []PipelineAction{{Name: "Approve", Provider: "Manual"}}},
		{Name: "Logging", Actions: []PipelineAction{DeployAction("Key", 1, "key"), DeployAction("Logging", 2, "logging")}},
		{Name: "Organization", Actions: []PipelineAction{DeployAction("Organizations", 1, "organizations")}},
		{Name: "SecurityAudit", Actions: []PipelineAction{DeployAction("SecurityAudit", 1, "security-audit")}},
		{Name: "Deploy", Actions: []PipelineAction{
			DeployAction("Network_VPCs", 2, "network-vpc"),
			DeployAction("Network_Prepare", 1, "network-prep"),
			DeployAction("Security", 1, "security"),
			DeployAction("Operations", 2, "operations"),
		}},
		{Name: "Finalize", Actions: []PipelineAction{DeployAction("Finalize", 1, "finalize")}},
	}
}
