package markers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"

	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/remote"
)

// SSM descriptions are capped at 1024 characters
const ssmDescriptionLimit = 1024

// SSMStore keeps one String parameter per migration at <prefix>/<id>, holding
// Ok, Failed or Errored. Parameters written by earlier tooling are read as-is.
type SSMStore struct {
	api    ssmiface.SSMAPI
	prefix string
}

// NewSSMStore creates a store acting as roleARN
func NewSSMStore(sess *session.Session, roleARN, prefix string) *SSMStore {
	return NewSSMStoreWithAPI(ssm.New(sess, remote.AssumeRoleConfig(sess, roleARN)), prefix)
}

// NewSSMStoreWithAPI wraps an existing SSM API
func NewSSMStoreWithAPI(api ssmiface.SSMAPI, prefix string) *SSMStore {
	return &SSMStore{api: api, prefix: strings.TrimRight(prefix, "/")}
}

func (s *SSMStore) name(migrationID string) string {
	return s.prefix + "/" + migrationID
}

func (s *SSMStore) Get(ctx context.Context, migrationID string) (*models.Marker, bool, error) {
	out, err := s.api.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.name(migrationID)),
	})
	if hasSSMCode(err, ssm.ErrCodeParameterNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get marker %s: %w", migrationID, err)
	}
	marker, err := s.fromParameter(out.Parameter)
	if err != nil {
		return nil, false, err
	}
	return marker, true, nil
}

func (s *SSMStore) Put(ctx context.Context, marker *models.Marker) error {
	value, err := ssmValue(marker.Status)
	if err != nil {
		return err
	}
	description := fmt.Sprintf("Migration run: %s", marker.RecordedAt.UTC().Format(time.RFC3339))
	if marker.RunID != "" {
		description += " run=" + marker.RunID
	}
	if marker.Status != models.StatusApplied && marker.Message != "" {
		description += ": " + marker.Message
	}
	if len(description) > ssmDescriptionLimit {
		description = description[:ssmDescriptionLimit]
	}

	input := &ssm.PutParameterInput{
		Name:        aws.String(s.name(marker.MigrationID)),
		Description: aws.String(description),
		Value:       aws.String(value),
		Type:        aws.String(ssm.ParameterTypeString),
		Tags: []*ssm.Tag{
			{Key: aws.String("AWS-Organized:Actor"), Value: aws.String("Framework")},
		},
	}
	_, err = s.api.PutParameterWithContext(ctx, input)
	if hasSSMCode(err, ssm.ErrCodeParameterAlreadyExists) {
		// tags cannot be combined with overwrite; the first write already tagged it
		input.Tags = nil
		input.Overwrite = aws.Bool(true)
		_, err = s.api.PutParameterWithContext(ctx, input)
	}
	if err != nil {
		return fmt.Errorf("put marker %s: %w", marker.MigrationID, err)
	}
	return nil
}

func (s *SSMStore) List(ctx context.Context) ([]*models.Marker, error) {
	var (
		markers []*models.Marker
		convErr error
	)
	err := s.api.GetParametersByPathPagesWithContext(ctx, &ssm.GetParametersByPathInput{
		Path:      aws.String(s.prefix),
		Recursive: aws.Bool(true),
	}, func(page *ssm.GetParametersByPathOutput, _ bool) bool {
		for _, p := range page.Parameters {
			marker, err := s.fromParameter(p)
			if err != nil {
				convErr = err
				return false
			}
			markers = append(markers, marker)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	if convErr != nil {
		return nil, convErr
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].MigrationID < markers[j].MigrationID })
	return markers, nil
}

func (s *SSMStore) Close() error {
	return nil
}

func (s *SSMStore) fromParameter(p *ssm.Parameter) (*models.Marker, error) {
	name := aws.StringValue(p.Name)
	id := strings.TrimPrefix(name, s.prefix+"/")
	value := aws.StringValue(p.Value)

	status, err := models.ParseMigrationStatus(value)
	if err != nil {
		return nil, fmt.Errorf("marker %s: %w", name, err)
	}
	return &models.Marker{
		MigrationID: id,
		Status:      status,
		Message:     value,
		RecordedAt:  aws.TimeValue(p.LastModifiedDate),
	}, nil
}

func ssmValue(status models.MigrationStatus) (string, error) {
	switch status {
	case models.StatusApplied:
		return models.StatusOK, nil
	case models.StatusFailed:
		return "Failed", nil
	case models.StatusErrored:
		return "Errored", nil
	default:
		return "", fmt.Errorf("marker status %s cannot be recorded", status)
	}
}

func hasSSMCode(err error, code string) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == code
}
