package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"

	"github.com/openshift/osc-mcp-server/internal/test"
)

type recordedCommand struct {
	tool    Tool
	outcome Outcome
}

type fakeRecorder struct {
	sync.Mutex
	commands []recordedCommand
}

func (r *fakeRecorder) RecordCommand(_ context.Context, tool Tool, outcome Outcome, _ time.Duration) {
	r.Lock()
	defer r.Unlock()
	r.commands = append(r.commands, recordedCommand{tool: tool, outcome: outcome})
}

func fakeRun(argv *[]string, stdout, stderr string, err error) testingexec.FakeCommandAction {
	return func(cmd string, args ...string) exec.Cmd {
		*argv = append([]string{cmd}, args...)
		fakeCmd := &testingexec.FakeCmd{
			RunScript: []testingexec.FakeAction{
				func() ([]byte, []byte, error) { return []byte(stdout), []byte(stderr), err },
			},
		}
		return testingexec.InitFakeCmd(fakeCmd, cmd, args...)
	}
}

func lookPathIn(dir string) func(string) (string, error) {
	return func(file string) (string, error) {
		if filepath.IsAbs(file) {
			return file, nil
		}
		return filepath.Join(dir, file), nil
	}
}

type ExecutorFakeSuite struct {
	suite.Suite
	fake     *testingexec.FakeExec
	recorder *fakeRecorder
	argv     []string
}

func (s *ExecutorFakeSuite) SetupTest() {
	s.argv = nil
	s.recorder = &fakeRecorder{}
	s.fake = &testingexec.FakeExec{LookPathFunc: lookPathIn("/usr/bin")}
}

func (s *ExecutorFakeSuite) executor(opts ExecutorOptions) *Executor {
	opts.Recorder = s.recorder
	return NewExecutor(s.fake, opts)
}

func (s *ExecutorFakeSuite) TestSuccess() {
	s.fake.CommandScript = []testingexec.FakeCommandAction{fakeRun(&s.argv, "NAME   STATUS\nnode-1 Ready\n", "warning\n", nil)}
	result, err := s.executor(ExecutorOptions{}).Run(context.Background(), &Invocation{
		Operation: "get_cluster_nodes",
		Tool:      Kubectl,
		Args:      []string{"get", "nodes", "-o", "wide"},
	})
	s.Require().NoError(err)
	s.Run("runs the resolved binary with the argument vector", func() {
		s.Equal([]string{"/usr/bin/kubectl", "get", "nodes", "-o", "wide"}, s.argv)
	})
	s.Run("captures stdout and stderr separately", func() {
		s.Equal("NAME   STATUS\nnode-1 Ready\n", string(result.Stdout))
		s.Equal("warning\n", string(result.Stderr))
		s.Equal(0, result.ExitCode)
	})
	s.Run("records an ok outcome", func() {
		s.Equal([]recordedCommand{{tool: "kubectl", outcome: "ok"}}, s.recorder.commands)
	})
}

func (s *ExecutorFakeSuite) TestExitError() {
	s.fake.CommandScript = []testingexec.FakeCommandAction{
		fakeRun(&s.argv, "", "Error from server (NotFound): pods \"x\" not found\n", testingexec.FakeExitError{Status: 1}),
	}
	_, err := s.executor(ExecutorOptions{}).Run(context.Background(), &Invocation{Tool: OC, Args: []string{"describe", "pod", "x"}})
	s.Require().ErrorIs(err, ErrExternalCommandFailed)
	var cliErr *Error
	s.Require().ErrorAs(err, &cliErr)
	s.Equal(1, cliErr.ExitCode)
	s.Equal("Error from server (NotFound): pods \"x\" not found\n", cliErr.Stderr)
	s.Contains(err.Error(), "Exit code: 1")
	s.Contains(err.Error(), "pods \"x\" not found")
	s.Equal([]recordedCommand{{tool: "oc", outcome: "failed"}}, s.recorder.commands)
}

func (s *ExecutorFakeSuite) TestToolNotFound() {
	s.Run("missing from PATH starts no process", func() {
		s.fake.LookPathFunc = func(file string) (string, error) { return "", exec.ErrExecutableNotFound }
		_, err := s.executor(ExecutorOptions{}).Run(context.Background(), &Invocation{Tool: OC, Args: []string{"get", "nodes"}})
		s.ErrorIs(err, ErrToolNotFound)
		s.Equal(0, s.fake.CommandCalls)
		s.Equal(OutcomeNotFound, s.recorder.commands[0].outcome)
	})
	s.Run("binary vanished before start", func() {
		s.SetupTest()
		s.fake.CommandScript = []testingexec.FakeCommandAction{fakeRun(&s.argv, "", "", exec.ErrExecutableNotFound)}
		_, err := s.executor(ExecutorOptions{}).Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"get", "nodes"}})
		s.ErrorIs(err, ErrToolNotFound)
	})
}

func (s *ExecutorFakeSuite) TestPathOverride() {
	s.fake.CommandScript = []testingexec.FakeCommandAction{fakeRun(&s.argv, "", "", nil)}
	_, err := s.executor(ExecutorOptions{Paths: map[Tool]string{OC: "/opt/openshift/bin/oc"}}).
		Run(context.Background(), &Invocation{Tool: OC, Args: []string{"get", "csv", "-A"}})
	s.Require().NoError(err)
	s.Equal("/opt/openshift/bin/oc", s.argv[0])
}

func (s *ExecutorFakeSuite) TestCanceledBeforeSlot() {
	executor := s.executor(ExecutorOptions{MaxConcurrent: 1})
	s.Require().True(executor.sem.TryAcquire(1))
	defer executor.sem.Release(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := executor.Run(ctx, &Invocation{Tool: Kubectl, Args: []string{"get", "pods"}})
	s.ErrorIs(err, ErrExecutionCanceled)
	s.Equal(0, s.fake.CommandCalls)
}

func (s *ExecutorFakeSuite) TestTimeoutWaitingForSlot() {
	executor := s.executor(ExecutorOptions{MaxConcurrent: 1, Timeout: 50 * time.Millisecond})
	s.Require().True(executor.sem.TryAcquire(1))
	defer executor.sem.Release(1)
	_, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"get", "pods"}})
	s.ErrorIs(err, ErrExecutionTimeout)
	s.Equal(OutcomeTimeout, s.recorder.commands[0].outcome)
}

func (s *ExecutorFakeSuite) TestDefaults() {
	executor := NewExecutor(s.fake, ExecutorOptions{})
	s.Equal(DefaultTimeout, executor.Timeout())
	s.Nil(executor.sem)
	s.Nil(executor.env)
}

func TestExecutorFake(t *testing.T) {
	suite.Run(t, new(ExecutorFakeSuite))
}

// ExecutorProcessSuite runs real child processes through shell scripts standing in for the CLIs.
type ExecutorProcessSuite struct {
	suite.Suite
	dir string
}

func (s *ExecutorProcessSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ExecutorProcessSuite) executor(script string, opts ExecutorOptions) *Executor {
	opts.Paths = map[Tool]string{Kubectl: test.WriteExecutable(s.T(), s.dir, "kubectl", script)}
	return NewExecutor(exec.New(), opts)
}

func (s *ExecutorProcessSuite) TestStdoutPassthrough() {
	executor := s.executor("printf 'NAME\\tREADY\\n  pod-a\\t1/1  \\n\\n'\n", ExecutorOptions{})
	result, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"get", "pods"}})
	s.Require().NoError(err)
	s.Equal("NAME\tREADY\n  pod-a\t1/1  \n\n", string(result.Stdout))
}

func (s *ExecutorProcessSuite) TestArgumentsAreNotInterpreted() {
	executor := s.executor("for a in \"$@\"; do printf '<%s>' \"$a\"; done\n", ExecutorOptions{})
	result, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"logs", "job/a b", "$(id)", "-n", "x;y"}})
	s.Require().NoError(err)
	s.Equal("<logs><job/a b><$(id)><-n><x;y>", string(result.Stdout))
}

func (s *ExecutorProcessSuite) TestNonZeroExit() {
	executor := s.executor("echo partial\necho 'error: the server doesn'\"'\"'t have a resource type \"kataconfig\"' >&2\nexit 3\n", ExecutorOptions{})
	result, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"get", "kataconfig"}})
	s.Require().ErrorIs(err, ErrExternalCommandFailed)
	var cliErr *Error
	s.Require().ErrorAs(err, &cliErr)
	s.Equal(3, cliErr.ExitCode)
	s.Contains(cliErr.Stderr, `doesn't have a resource type "kataconfig"`)
	s.Equal("partial\n", string(result.Stdout))
}

func (s *ExecutorProcessSuite) TestTimeoutKillsChild() {
	executor := s.executor("exec sleep 30\n", ExecutorOptions{Timeout: 200 * time.Millisecond})
	start := time.Now()
	_, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"get", "pods"}})
	s.ErrorIs(err, ErrExecutionTimeout)
	s.Less(time.Since(start), 10*time.Second)
}

func (s *ExecutorProcessSuite) TestCallerCancellation() {
	executor := s.executor("exec sleep 30\n", ExecutorOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)
	_, err := executor.Run(ctx, &Invocation{Tool: Kubectl, Args: []string{"get", "pods"}})
	s.ErrorIs(err, ErrExecutionCanceled)
	s.True(errors.Is(err, context.Canceled))
}

func (s *ExecutorProcessSuite) TestKubeconfig() {
	executor := s.executor("printf '%s' \"$KUBECONFIG\"\n", ExecutorOptions{Kubeconfig: "/tmp/osc/kubeconfig"})
	result, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"config", "view"}})
	s.Require().NoError(err)
	s.Equal("/tmp/osc/kubeconfig", string(result.Stdout))
}

func (s *ExecutorProcessSuite) TestMissingBinary() {
	executor := NewExecutor(exec.New(), ExecutorOptions{Paths: map[Tool]string{OC: filepath.Join(s.dir, "oc")}})
	_, err := executor.Run(context.Background(), &Invocation{Tool: OC, Args: []string{"get", "nodes"}})
	s.ErrorIs(err, ErrToolNotFound)
	_, statErr := os.Stat(filepath.Join(s.dir, "oc"))
	s.True(os.IsNotExist(statErr))
}

func (s *ExecutorProcessSuite) TestConcurrencyBound() {
	marker := filepath.Join(s.dir, "running")
	// Fails when another invocation is already running.
	script := "if [ -e " + marker + " ]; then exit 9; fi\ntouch " + marker + "\nsleep 0.2\nrm " + marker + "\n"
	executor := s.executor(script, ExecutorOptions{MaxConcurrent: 1})
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := executor.Run(context.Background(), &Invocation{Tool: Kubectl, Args: []string{"get", "pods"}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
}

func TestExecutorProcess(t *testing.T) {
	suite.Run(t, new(ExecutorProcessSuite))
}
