package cli

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Invocation is a fully validated command, ready to be executed.
type Invocation struct {
	Operation string
	Tool      Tool
	Args      []string
}

// String renders the invocation as a command line, for logging only.
func (i *Invocation) String() string {
	return strings.TrimSpace(string(i.Tool) + " " + strings.Join(i.Args, " "))
}

// Builder renders catalog operations into invocations. It performs no I/O.
type Builder struct {
	defaultTool      Tool
	defaultNamespace string
}

// NewBuilder returns a Builder with the given defaults. Empty values fall back to
// Kubectl and DefaultNamespace.
func NewBuilder(defaultTool Tool, defaultNamespace string) *Builder {
	if defaultTool == "" {
		defaultTool = Kubectl
	}
	if defaultNamespace == "" {
		defaultNamespace = DefaultNamespace
	}
	return &Builder{defaultTool: defaultTool, defaultNamespace: defaultNamespace}
}

// Build validates the parameters of operation and renders its argument vector.
func (b *Builder) Build(operation string, params map[string]any) (*Invocation, error) {
	op, ok := Lookup(operation)
	if !ok {
		return nil, &Error{
			Code:      CodeUnknownOperation,
			Operation: operation,
			Message:   fmt.Sprintf("unknown operation %q", operation),
		}
	}
	inv, err := b.build(op, params)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Operation = op.Name
		}
		return nil, err
	}
	return inv, nil
}

func (b *Builder) build(op OperationSpec, params map[string]any) (*Invocation, error) {
	tool := b.defaultTool
	// Only a missing or null selector picks the default, an empty string is rejected like any other value.
	if val, ok := params[ParamCommand]; ok && val != nil {
		command, err := stringParam(params, ParamCommand)
		if err != nil {
			return nil, err
		}
		if tool, err = ParseTool(command); err != nil {
			return nil, err
		}
	}

	args := append([]string{}, op.Verb...)

	if op.HasName() {
		name, err := stringParam(params, ParamName)
		if err != nil {
			return nil, err
		}
		if err = validateResourceName(name); err != nil {
			return nil, err
		}
		args = append(args, op.NamePrefix+name)
	}

	if op.Namespaced {
		value, err := stringParam(params, ParamNamespace)
		if err != nil {
			return nil, err
		}
		scope, err := ParseNamespaceScope(value, b.defaultNamespace)
		if err != nil {
			return nil, err
		}
		args = append(args, scope.Args()...)
	}

	args = append(args, op.Flags...)
	return &Invocation{Operation: op.Name, Tool: tool, Args: args}, nil
}

// stringParam returns "" for missing or null parameters.
func stringParam(params map[string]any, key string) (string, error) {
	val, ok := params[key]
	if !ok || val == nil {
		return "", nil
	}
	str, ok := val.(string)
	if !ok {
		return "", invalidParameter(key, "%s parameter must be a string, got %T", key, val)
	}
	return str, nil
}

func validateResourceName(name string) error {
	if name == "" {
		return invalidParameter(ParamName, "%s parameter required", ParamName)
	}
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return invalidParameter(ParamName, "invalid resource name %q: %s", name, strings.Join(errs, "; "))
	}
	return nil
}
