package cli

// Parameter names shared by every operation.
const (
	ParamCommand   = "command"
	ParamNamespace = "namespace"
	ParamName      = "name"
)

// ParamKind determines the domain constraint applied to a parameter value.
type ParamKind int

const (
	// ParamTool accepts one of Tools().
	ParamTool ParamKind = iota
	// ParamNamespaceScope accepts an RFC 1123 label or AllNamespaces.
	ParamNamespaceScope
	// ParamResourceName accepts an RFC 1123 subdomain.
	ParamResourceName
)

type ParamSpec struct {
	Name        string
	Kind        ParamKind
	Description string
	Required    bool
	// Default is advertised to clients; the Builder applies its own configured defaults.
	Default string
}

// OperationSpec describes how one catalog operation renders into CLI arguments:
// Verb, then NamePrefix+name, then the namespace flags, then Flags.
type OperationSpec struct {
	Name        string
	Title       string
	Description string
	Params      []ParamSpec
	Verb        []string
	NamePrefix  string
	Namespaced  bool
	Flags       []string
}

// Param returns the parameter named name, if the operation declares it.
func (o OperationSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// HasName reports whether the operation targets a single named resource.
func (o OperationSpec) HasName() bool {
	_, ok := o.Param(ParamName)
	return ok
}
