package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/klog/v2"
)

const (
	userGuideName     = "OSC User guide"
	userGuideMIMEType = "text/markdown"
)

// collectResources returns the user guide resource when the configured file exists.
func (s *Server) collectResources() []*mcp.Resource {
	path := s.configuration.ResolvePath(s.configuration.UserGuide)
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		klog.V(1).Infof("Failed to resolve user guide path %s: %v", path, err)
		return nil
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		klog.V(2).Infof("User guide %s not available, resource not registered", abs)
		return nil
	}
	return []*mcp.Resource{{
		URI:         "file://" + abs,
		Name:        userGuideName,
		Title:       userGuideName,
		Description: "User guide for OpenShift sandboxed containers",
		MIMEType:    userGuideMIMEType,
		Size:        info.Size(),
	}}
}

func (s *Server) registerResource(resource *mcp.Resource) error {
	path := resource.URI[len("file://"):]
	s.server.AddResource(resource, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, mcp.ResourceNotFoundError(req.Params.URI)
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: userGuideMIMEType,
				Text:     string(content),
			}},
		}, nil
	})
	return nil
}
