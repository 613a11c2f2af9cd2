package cli

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// AllNamespaces selects every namespace. It is never passed to the CLI as a namespace name.
const AllNamespaces = "all"

const DefaultNamespace = "default"

// NamespaceScope is either a single namespace or all of them.
type NamespaceScope struct {
	all  bool
	name string
}

// ParseNamespaceScope validates a namespace parameter. An empty value falls back to
// defaultNamespace.
func ParseNamespaceScope(value, defaultNamespace string) (NamespaceScope, error) {
	if value == "" {
		value = defaultNamespace
	}
	if value == AllNamespaces {
		return NamespaceScope{all: true}, nil
	}
	if errs := validation.IsDNS1123Label(value); len(errs) > 0 {
		return NamespaceScope{}, invalidParameter(ParamNamespace,
			"invalid namespace %q: %s", value, strings.Join(errs, "; "))
	}
	return NamespaceScope{name: value}, nil
}

func (n NamespaceScope) All() bool {
	return n.all
}

func (n NamespaceScope) Name() string {
	return n.name
}

// Args renders the scope as CLI flags.
func (n NamespaceScope) Args() []string {
	if n.all {
		return []string{"--all-namespaces"}
	}
	return []string{"-n", n.name}
}

func (n NamespaceScope) String() string {
	if n.all {
		return AllNamespaces
	}
	return n.name
}
