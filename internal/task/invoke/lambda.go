package invoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
)

const (
	DefaultLambdaEndpoint = "http://localhost:3002"
	DefaultLambdaRegion   = "us-east-1"
)

// LambdaConfig configures the Lambda Invoke API invoker.
type LambdaConfig struct {
	Endpoint   string // serverless-offline lambda port
	Region     string
	NamePrefix string // e.g. "my-service-dev-"; prepended to the task name
	Timeout    time.Duration
}

type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Lambda invokes tasks synchronously through the Lambda Invoke API.
type Lambda struct {
	client lambdaAPI
	cfg    LambdaConfig
}

// NewLambda creates a Lambda invoker. Credentials are static placeholders;
// serverless-offline does not verify them.
func NewLambda(cfg LambdaConfig) *Lambda {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultLambdaEndpoint
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = DefaultLambdaRegion
	}
	client := lambda.New(lambda.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider("offline", "offline", ""),
	})
	return &Lambda{client: client, cfg: cfg}
}

func (l *Lambda) Invoke(ctx context.Context, task string, payload any) ([]byte, error) {
	data, err := EncodePayload(payload)
	if err != nil {
		return nil, &InvocationError{Task: task, Err: err}
	}
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(l.cfg.NamePrefix + task),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        data,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			err = fmt.Errorf("lambda %s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
		}
		return nil, &InvocationError{Task: task, Err: err}
	}
	if out.FunctionError != nil {
		return out.Payload, &InvocationError{
			Task:   task,
			Err:    fmt.Errorf("function error %s: %s", aws.ToString(out.FunctionError), strings.TrimSpace(string(out.Payload))),
			Output: out.Payload,
		}
	}
	return out.Payload, nil
}
