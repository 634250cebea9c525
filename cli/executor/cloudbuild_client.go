package executor

import (
	"context"
	"fmt"
	"strings"

	cloudbuild "cloud.google.com/go/cloudbuild/apiv1/v2"
	"cloud.google.com/go/cloudbuild/apiv1/v2/cloudbuildpb"
	"google.golang.org/api/option"
)

// CloudBuildConfig describes how to reach Google Cloud Build.
type CloudBuildConfig struct {
	ProjectID       string
	TriggerID       string
	CredentialsFile string
	CredentialsJSON string
}

type cloudBuildClient struct {
	cfg    CloudBuildConfig
	client *cloudbuild.Client
}

// NewCloudBuildClient connects to Cloud Build. With a TriggerID the
// trigger is run, otherwise a bare build carrying only substitutions is
// submitted.
func NewCloudBuildClient(ctx context.Context, cfg CloudBuildConfig) (BuildClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("cloud build project is required")
	}
	options := []option.ClientOption{}
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		options = append(options, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	} else if strings.TrimSpace(cfg.CredentialsFile) != "" {
		options = append(options, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := cloudbuild.NewClient(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud build client: %w", err)
	}
	return &cloudBuildClient{cfg: cfg, client: client}, nil
}

func (c *cloudBuildClient) CreateBuild(ctx context.Context, substitutions map[string]string) (BuildOperation, error) {
	if c.cfg.TriggerID != "" {
		op, err := c.client.RunBuildTrigger(ctx, &cloudbuildpb.RunBuildTriggerRequest{
			ProjectId: c.cfg.ProjectID,
			TriggerId: c.cfg.TriggerID,
			Source: &cloudbuildpb.RepoSource{
				ProjectId:     c.cfg.ProjectID,
				Substitutions: substitutions,
			},
		})
		if err != nil {
			return nil, err
		}
		return &buildOperation{
			poll:     func(ctx context.Context) (*cloudbuildpb.Build, error) { return op.Poll(ctx) },
			done:     op.Done,
			metadata: op.Metadata,
		}, nil
	}

	op, err := c.client.CreateBuild(ctx, &cloudbuildpb.CreateBuildRequest{
		ProjectId: c.cfg.ProjectID,
		Build:     &cloudbuildpb.Build{Substitutions: substitutions},
	})
	if err != nil {
		return nil, err
	}
	return &buildOperation{
		poll:     func(ctx context.Context) (*cloudbuildpb.Build, error) { return op.Poll(ctx) },
		done:     op.Done,
		metadata: op.Metadata,
	}, nil
}

func (c *cloudBuildClient) Close() error {
	return c.client.Close()
}

// buildOperation adapts both long-running operation types returned by
// the Cloud Build client.
type buildOperation struct {
	poll     func(ctx context.Context) (*cloudbuildpb.Build, error)
	done     func() bool
	metadata func() (*cloudbuildpb.BuildOperationMetadata, error)
}

func (o *buildOperation) Poll(ctx context.Context) (*BuildResult, bool, error) {
	build, err := o.poll(ctx)
	if !o.done() {
		return nil, false, err
	}
	// A failed build finishes the operation with an error and no response.
	if build == nil {
		if meta, metaErr := o.metadata(); metaErr == nil && meta != nil {
			build = meta.GetBuild()
		}
	}
	result := &BuildResult{Status: cloudbuildpb.Build_FAILURE.String()}
	if build != nil {
		result.ID = build.GetId()
		result.Status = build.GetStatus().String()
		result.LogURL = build.GetLogUrl()
		result.Success = build.GetStatus() == cloudbuildpb.Build_SUCCESS
	}
	return result, true, nil
}
