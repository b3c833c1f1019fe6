// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sagemaker

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/smithy-go"

	"jobber/pkg/monitor"
)

// LogGroup holds the output of every SageMaker training job.
const LogGroup = "/aws/sagemaker/TrainingJobs"

// LogsAPI is the part of the CloudWatch Logs client used here.
type LogsAPI interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

var classifier = monitor.Classifier{
	"Completed": monitor.Succeeded,
	"Failed":    monitor.Failed,
	"Stopped":   monitor.Incomplete,
}

// Strategy reads job status from DescribeTrainingJob and logs from CloudWatch.
type Strategy struct {
	API  API
	Logs LogsAPI
}

var _ monitor.Strategy = (*Strategy)(nil)

func (s *Strategy) Status(ctx context.Context, job string) (monitor.Snapshot, error) {
	out, err := s.API.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{TrainingJobName: aws.String(job)})
	if err != nil {
		return monitor.Snapshot{}, classifyErr(err)
	}
	snap := monitor.Snapshot{
		Primary:       string(out.TrainingJobStatus),
		Secondary:     string(out.SecondaryStatus),
		FailureReason: aws.ToString(out.FailureReason),
		Timestamp:     aws.ToTime(out.LastModifiedTime),
	}
	if n := len(out.SecondaryStatusTransitions); n > 0 {
		snap.Message = aws.ToString(out.SecondaryStatusTransitions[n-1].StatusMessage)
	}
	return snap, nil
}

// ListStreams returns streams named <job>/<host>. A missing log group means
// the job has not logged yet.
func (s *Strategy) ListStreams(ctx context.Context, job string) ([]string, error) {
	in := &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(LogGroup),
		LogStreamNamePrefix: aws.String(job + "/"),
	}
	var streams []string
	for {
		out, err := s.Logs.DescribeLogStreams(ctx, in)
		if err != nil {
			var notFound *cwtypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				return streams, nil
			}
			return streams, classifyErr(err)
		}
		for _, ls := range out.LogStreams {
			streams = append(streams, aws.ToString(ls.LogStreamName))
		}
		if out.NextToken == nil || aws.ToString(out.NextToken) == aws.ToString(in.NextToken) {
			return streams, nil
		}
		in.NextToken = out.NextToken
	}
}

// FetchLogs reads one page of events. An empty token starts from the head.
func (s *Strategy) FetchLogs(ctx context.Context, _, stream, token string) ([]string, string, error) {
	in := &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(LogGroup),
		LogStreamName: aws.String(stream),
		StartFromHead: aws.Bool(true),
	}
	if token != "" {
		in.NextToken = aws.String(token)
	}
	out, err := s.Logs.GetLogEvents(ctx, in)
	if err != nil {
		var notFound *cwtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, token, monitor.ErrStreamNotFound
		}
		return nil, token, classifyErr(err)
	}
	lines := make([]string, 0, len(out.Events))
	for _, ev := range out.Events {
		lines = append(lines, aws.ToString(ev.Message))
	}
	next := aws.ToString(out.NextForwardToken)
	if next == "" {
		next = token
	}
	return lines, next, nil
}

func (s *Strategy) Classify(status string) monitor.Outcome {
	return classifier.Classify(status)
}

var transientCodes = map[string]bool{
	"ThrottlingException":      true,
	"Throttling":               true,
	"TooManyRequestsException": true,
	"RequestLimitExceeded":     true,
	"ServiceUnavailable":       true,
	"InternalFailure":          true,
	"InternalServerError":      true,
}

// classifyErr marks throttling, server faults and per-query timeouts as
// transient.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return monitor.Transient(err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (transientCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer) {
		return monitor.Transient(err)
	}
	return err
}
