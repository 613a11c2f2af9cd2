package mcp

import (
	"bytes"
	"flag"
	"strconv"
	"testing"

	"github.com/stretchr/testify/suite"
	"k8s.io/klog/v2"
	"k8s.io/klog/v2/textlogger"

	"github.com/openshift/osc-mcp-server/internal/test"
)

type MiddlewareSuite struct {
	BaseMcpSuite
	logBuffer bytes.Buffer
	klogState klog.State
}

func (s *MiddlewareSuite) SetupTest() {
	s.BaseMcpSuite.SetupTest()
	s.klogState = klog.CaptureState()
	s.logBuffer.Reset()
}

func (s *MiddlewareSuite) TearDownTest() {
	s.BaseMcpSuite.TearDownTest()
	s.klogState.Restore()
}

func (s *MiddlewareSuite) setLogLevel(level int) {
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	klog.InitFlags(flags)
	s.Require().NoError(flags.Set("v", strconv.Itoa(level)))
	klog.SetLoggerWithOptions(textlogger.NewLogger(textlogger.NewConfig(
		textlogger.Verbosity(level),
		textlogger.Output(&s.logBuffer),
	)))
}

func (s *MiddlewareSuite) TestToolCallLogging() {
	s.setLogLevel(5)
	s.InitMcpClient()
	_, err := s.mcpClient.CallTool("get_pods", map[string]any{"namespace": "prod"})
	s.Require().NoError(err)
	s.Run("logs tool name and arguments", func() {
		s.Contains(s.logBuffer.String(), "mcp tool call: get_pods(map[namespace:prod])")
	})
	s.Run("logs the rendered command line", func() {
		s.Contains(s.logBuffer.String(), "kubectl get pods -n prod -o wide")
	})
}

func (s *MiddlewareSuite) TestNoLoggingAtLowLevel() {
	s.setLogLevel(1)
	s.InitMcpClient()
	result, err := s.mcpClient.CallTool("get_pods", nil)
	s.Require().NoError(err)
	s.Equal("kubectl get pods -n default -o wide\n", test.TextContent(result))
	s.NotContains(s.logBuffer.String(), "mcp tool call")
}

func TestMiddleware(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}
