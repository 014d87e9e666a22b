package resource

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInstanceAPI struct {
	existing   []ec2types.Instance // returned by filtered describes
	states     []ec2types.InstanceStateName
	nilStates  int // id lookups answered with no State before the script runs
	runInputs  []*ec2.RunInstancesInput
	terminated []string
}

func (f *fakeInstanceAPI) RunInstances(_ context.Context, params *ec2.RunInstancesInput, _ ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error) {
	f.runInputs = append(f.runInputs, params)
	return &ec2.RunInstancesOutput{
		Instances: []ec2types.Instance{{InstanceId: aws.String("i-new")}},
	}, nil
}

func (f *fakeInstanceAPI) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if len(params.InstanceIds) > 0 && f.nilStates > 0 {
		f.nilStates--
		return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{InstanceId: aws.String(params.InstanceIds[0])}},
		}}}, nil
	}
	// Lookups by id report a scripted state sequence for the wait loop
	if len(params.InstanceIds) > 0 && len(f.states) > 0 {
		state := f.states[0]
		if len(f.states) > 1 {
			f.states = f.states[1:]
		}
		return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{
				InstanceId:      aws.String(params.InstanceIds[0]),
				PublicIpAddress: aws.String("203.0.113.10"),
				State:           &ec2types.InstanceState{Name: state},
			}},
		}}}, nil
	}
	if len(f.existing) == 0 {
		return &ec2.DescribeInstancesOutput{}, nil
	}
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{
		Instances: f.existing,
	}}}, nil
}

func (f *fakeInstanceAPI) TerminateInstances(_ context.Context, params *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminated = append(f.terminated, params.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func TestLaunch_EncodesUserDataAndProfile(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeInstanceAPI{}
	m := NewInstanceManager(api)

	id, err := m.Launch(context.Background(), LaunchSpec{
		Name:            "etl-instance",
		ImageID:         "ami-123",
		InstanceType:    "t3.small",
		SubnetID:        "subnet-1",
		KeyName:         "etl-key",
		SecurityGroups:  []string{"sg-1"},
		InstanceProfile: "etl-profile",
		UserData:        "#!/bin/bash\necho hi\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "i-new", id)

	require.Len(t, api.runInputs, 1)
	input := api.runInputs[0]
	assert.Equal(t, "etl-profile", aws.ToString(input.IamInstanceProfile.Name))
	assert.NotEmpty(t, aws.ToString(input.ClientToken))

	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(input.UserData))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\necho hi\n", string(decoded))
}

func TestLaunch_ReusesExistingInstance(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeInstanceAPI{existing: []ec2types.Instance{{InstanceId: aws.String("i-existing")}}}
	m := NewInstanceManager(api)

	id, err := m.Launch(context.Background(), LaunchSpec{Name: "etl-instance"})
	require.NoError(t, err)
	assert.Equal(t, "i-existing", id)
	assert.Empty(t, api.runInputs, "no second instance is launched")
}

func TestFindByName_NotFound(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	m := NewInstanceManager(&fakeInstanceAPI{})

	_, err := m.FindByName(context.Background(), "etl-instance")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWaitTerminated_PollsUntilTerminated(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeInstanceAPI{states: []ec2types.InstanceStateName{
		ec2types.InstanceStateNameShuttingDown,
		ec2types.InstanceStateNameShuttingDown,
		ec2types.InstanceStateNameTerminated,
	}}
	m := NewInstanceManager(api)

	done := m.WaitTerminated(context.Background(), "i-1", time.Millisecond, time.Second)
	assert.True(t, done)
}

func TestWaitTerminated_ToleratesMissingState(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	// DescribeInstances can briefly report an instance with no State block.
	api := &fakeInstanceAPI{
		nilStates: 1,
		states:    []ec2types.InstanceStateName{ec2types.InstanceStateNameTerminated},
	}
	m := NewInstanceManager(api)

	done := m.WaitTerminated(context.Background(), "i-1", time.Millisecond, time.Second)
	assert.True(t, done)
}

func TestWaitTerminated_MissingInstanceIsDone(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	// Terminated instances eventually drop out of describe results.
	m := NewInstanceManager(&fakeInstanceAPI{})

	done := m.WaitTerminated(context.Background(), "i-gone", time.Millisecond, time.Second)
	assert.True(t, done)
}

func TestPublicIP(t *testing.T) {
	t.Setenv("SOUSCHEF_TEST_MODE", "true")

	api := &fakeInstanceAPI{states: []ec2types.InstanceStateName{ec2types.InstanceStateNameRunning}}
	m := NewInstanceManager(api)

	ip, err := m.PublicIP(context.Background(), "i-1")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", ip)
}
