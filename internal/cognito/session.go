package cognito

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// IdentityAPI is the subset of the Cognito Identity client used by Session.
type IdentityAPI interface {
	GetId(ctx context.Context, params *ci.GetIdInput, optFns ...func(*ci.Options)) (*ci.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *ci.GetCredentialsForIdentityInput, optFns ...func(*ci.Options)) (*ci.GetCredentialsForIdentityOutput, error)
}

// Session is an anonymous (unauthenticated) identity in a Cognito
// identity pool. It doubles as an aws.CredentialsProvider so the blob
// store can act under that identity.
type Session struct {
	api    IdentityAPI
	poolID string

	mu         sync.Mutex
	identityID string
}

func NewSession(api IdentityAPI, poolID string) *Session {
	return &Session{api: api, poolID: poolID}
}

// NewAWSSession creates a Session backed by the AWS SDK client.
func NewAWSSession(cfg aws.Config, poolID string) *Session {
	return NewSession(ci.NewFromConfig(cfg), poolID)
}

// Establish obtains the anonymous identity id. Subsequent calls return
// the same id without contacting Cognito.
func (s *Session) Establish(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identityID != "" {
		return s.identityID, nil
	}

	out, err := s.api.GetId(ctx, &ci.GetIdInput{IdentityPoolId: &s.poolID})
	if err != nil {
		return "", mapAWSError(err)
	}
	if out.IdentityId == nil || *out.IdentityId == "" {
		return "", fmt.Errorf("unexpected empty identity id")
	}
	s.identityID = *out.IdentityId
	return s.identityID, nil
}

// Retrieve implements aws.CredentialsProvider. Wrap it in
// aws.NewCredentialsCache to avoid fetching on every request.
func (s *Session) Retrieve(ctx context.Context) (aws.Credentials, error) {
	id, err := s.Establish(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}

	out, err := s.api.GetCredentialsForIdentity(ctx, &ci.GetCredentialsForIdentityInput{IdentityId: &id})
	if err != nil {
		return aws.Credentials{}, mapAWSError(err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("unexpected nil credentials")
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "CognitoIdentity",
	}
	if out.Credentials.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *out.Credentials.Expiration
	}
	return creds, nil
}

// LocalSession stands in for Cognito when no identity pool is configured.
type LocalSession struct {
	once sync.Once
	id   string
}

func NewLocalSession() *LocalSession {
	return &LocalSession{}
}

func (s *LocalSession) Establish(ctx context.Context) (string, error) {
	s.once.Do(func() {
		s.id = "local:" + uuid.NewString()
	})
	return s.id, nil
}

// mapAWSError converts AWS SDK errors to cognito sentinel errors.
func mapAWSError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("cognito: %w", err)
	}

	switch apiErr.ErrorCode() {
	case "NotAuthorizedException":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrNotAuthorized)
	case "ResourceNotFoundException":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrPoolNotFound)
	case "TooManyRequestsException":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrTooManyRequests)
	case "LimitExceededException":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrLimitExceeded)
	case "ExternalServiceException", "InternalErrorException":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrExternalService)
	case "InvalidParameterException":
		return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), ErrInvalidParameter)
	default:
		return fmt.Errorf("cognito %s: %w", apiErr.ErrorCode(), err)
	}
}

// Compile-time check: Session provides AWS credentials.
var _ aws.CredentialsProvider = (*Session)(nil)
