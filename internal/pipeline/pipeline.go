// Package pipeline recovers the ordered catalog of deployed stacks from the landing zone pipeline.
package pipeline

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/mitchellh/mapstructure"

	"github.com/gruntwork-io/lz-teardown/internal/awshelper"
	"github.com/gruntwork-io/lz-teardown/internal/errors"
	"github.com/gruntwork-io/lz-teardown/pkg/log"
)

const (
	SourceStageName    = "Source"
	BootstrapStageName = "Bootstrap"

	BootstrapStage = "bootstrap"

	// BootstrapStackSuffix names the CDK toolkit stack: <prefix>-CDKToolkit.
	BootstrapStackSuffix = "CDKToolkit"

	envDeployCommand = "CDK_OPTIONS"
	envStage         = "ACCELERATOR_STAGE"
	envConfiguration = "EnvironmentVariables"
	stageFlag        = "--stage"

	ProviderCodeCommit = "CodeCommit"
	ProviderS3         = "S3"
)

// managementOnlyStages are deployed to the management account in the home region only.
var managementOnlyStages = []string{"prepare", "accounts", "organizations", "finalize"}

// StageAction is one pipeline action that produced one stack.
type StageAction struct {
	StageName       string
	Name            string
	Stage           string
	StackNamePrefix string
	StageOrder      int
	Order           int
	ManagementOnly  bool
	Bootstrap       bool
}

// StackName returns the deployed stack name of the action for one account and region.
func (action StageAction) StackName(prefix, accountID, region string) string {
	if action.Bootstrap {
		return prefix + "-" + BootstrapStackSuffix
	}

	return strings.Join([]string{prefix, action.StackNamePrefix, accountID, region}, "-")
}

// ConfigSource holds the coordinates of the configuration repository.
type ConfigSource struct {
	Provider       string
	RepositoryName string
	Branch         string
	Bucket         string
	ObjectKey      string
}

// BootstrapEnv is the build environment of the bootstrap stage.
type BootstrapEnv struct {
	ManagementAccountID       string `mapstructure:"MANAGEMENT_ACCOUNT_ID"`
	ManagementAccountRoleName string `mapstructure:"MANAGEMENT_ACCOUNT_ROLE_NAME"`
	Prefix                    string `mapstructure:"ACCELERATOR_PREFIX"`
}

// Introspection is what the pipeline tells about the deployed landing zone.
type Introspection struct {
	Name         string
	Actions      []StageAction
	Bootstrap    BootstrapEnv
	ConfigSource ConfigSource
}

// StageNames returns the distinct stage names in declaration order.
func (in *Introspection) StageNames() []string {
	var names []string

	for _, action := range in.Actions {
		if !slices.Contains(names, action.StageName) {
			names = append(names, action.StageName)
		}
	}

	return names
}

// ActionNames returns the action names in declaration order.
func (in *Introspection) ActionNames() []string {
	names := make([]string, 0, len(in.Actions))

	for _, action := range in.Actions {
		names = append(names, action.Name)
	}

	return names
}

// Introspect reads the pipeline declaration and returns the stack catalog in creation order.
func Introspect(ctx context.Context, l log.Logger, client awshelper.GetPipelineAPI, name string) (*Introspection, error) {
	out, err := client.GetPipeline(ctx, &codepipeline.GetPipelineInput{Name: aws.String(name)})
	if err != nil {
		if awshelper.IsPipelineNotFound(err) {
			return nil, errors.New(PipelineNotFoundError{Name: name})
		}

		return nil, errors.Errorf("Error reading pipeline %s: %w", name, err)
	}

	if out.Pipeline == nil {
		return nil, errors.New(PipelineNotFoundError{Name: name})
	}

	in := &Introspection{Name: name}

	for i, stage := range out.Pipeline.Stages {
		stageName := aws.ToString(stage.Name)
		stageOrder := i + 1

		switch {
		case strings.EqualFold(stageName, SourceStageName):
			if source, ok := configSource(stage.Actions); ok {
				in.ConfigSource = source
			}

			continue
		case strings.EqualFold(stageName, BootstrapStageName):
			env, err := bootstrapEnv(stage.Actions)
			if err != nil {
				l.Warnf("Unable to decode environment of stage %s: %v", stageName, err)
			}

			in.Bootstrap = env
		}

		in.Actions = append(in.Actions, stageActions(l, stageName, stageOrder, stage.Actions)...)
	}

	return in, nil
}

// stageActions turns the actions of one stage into stage actions sorted by their run order.
func stageActions(l log.Logger, stageName string, stageOrder int, actions []cptypes.ActionDeclaration) []StageAction {
	var result []StageAction

	for _, action := range actions {
		actionName := aws.ToString(action.Name)

		if action.ActionTypeId == nil || aws.ToString(action.ActionTypeId.Provider) != "CodeBuild" {
			continue
		}

		env, err := environment(action.Configuration)
		if err != nil {
			l.Warnf("Skipping action %s of stage %s: malformed environment: %v", actionName, stageName, err)
			continue
		}

		stage := deployStage(env)
		if stage == "" {
			l.Debugf("Action %s of stage %s does not deploy a stack", actionName, stageName)
			continue
		}

		order := int(aws.ToInt32(action.RunOrder))
		if order <= 0 {
			order = 1
		}

		result = append(result, StageAction{
			StageName:       stageName,
			StageOrder:      stageOrder,
			Order:           order,
			Name:            actionName,
			Stage:           stage,
			StackNamePrefix: StackNamePrefix(stage),
			ManagementOnly:  slices.Contains(managementOnlyStages, stage),
			Bootstrap:       stage == BootstrapStage,
		})
	}

	slices.SortStableFunc(result, func(a, b StageAction) int {
		return a.Order - b.Order
	})

	return result
}

// StackNamePrefix turns a stage id such as network-vpc into NetworkVpcStack.
func StackNamePrefix(stage string) string {
	if stage == BootstrapStage {
		return BootstrapStackSuffix
	}

	var sb strings.Builder

	for _, part := range strings.FieldsFunc(stage, func(r rune) bool { return r == '-' || r == '_' }) {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		sb.WriteString(string(runes))
	}

	return sb.String() + "Stack"
}

// deployStage extracts the stage id from the deploy command, falling back to the stage variable.
func deployStage(env map[string]string) string {
	fields := strings.Fields(env[envDeployCommand])

	for i, field := range fields {
		if value, ok := strings.CutPrefix(field, stageFlag+"="); ok {
			return value
		}

		if field == stageFlag && i+1 < len(fields) {
			return fields[i+1]
		}
	}

	if len(fields) > 0 && fields[0] == BootstrapStage {
		return BootstrapStage
	}

	return env[envStage]
}

type environmentVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// environment decodes the JSON encoded environment variables of a CodeBuild action.
func environment(configuration map[string]string) (map[string]string, error) {
	raw, ok := configuration[envConfiguration]
	if !ok || raw == "" {
		return map[string]string{}, nil
	}

	var vars []environmentVariable
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, errors.New(err)
	}

	env := make(map[string]string, len(vars))

	for _, v := range vars {
		if v.Name == "" {
			return nil, errors.Errorf("environment variable without a name")
		}

		env[v.Name] = v.Value
	}

	return env, nil
}

func bootstrapEnv(actions []cptypes.ActionDeclaration) (BootstrapEnv, error) {
	merged := map[string]string{}

	for _, action := range actions {
		env, err := environment(action.Configuration)
		if err != nil {
			return BootstrapEnv{}, err
		}

		for k, v := range env {
			merged[k] = v
		}
	}

	var result BootstrapEnv
	if err := mapstructure.Decode(merged, &result); err != nil {
		return BootstrapEnv{}, errors.New(err)
	}

	return result, nil
}

func configSource(actions []cptypes.ActionDeclaration) (ConfigSource, bool) {
	for _, action := range actions {
		if !strings.Contains(strings.ToLower(aws.ToString(action.Name)), "config") {
			continue
		}

		source := ConfigSource{
			RepositoryName: action.Configuration["RepositoryName"],
			Branch:         action.Configuration["BranchName"],
			Bucket:         action.Configuration["S3Bucket"],
			ObjectKey:      action.Configuration["S3ObjectKey"],
		}

		if action.ActionTypeId != nil {
			source.Provider = aws.ToString(action.ActionTypeId.Provider)
		}

		return source, true
	}

	return ConfigSource{}, false
}
