package cli

import (
	"fmt"
	"slices"
)

func commandParam() ParamSpec {
	return ParamSpec{
		Name:        ParamCommand,
		Kind:        ParamTool,
		Description: "The CLI tool to use ('kubectl' or 'oc')",
		Default:     string(Kubectl),
	}
}

func namespaceParam(description string) ParamSpec {
	return ParamSpec{
		Name:        ParamNamespace,
		Kind:        ParamNamespaceScope,
		Description: description + ` Or "all" for all namespaces`,
		Default:     DefaultNamespace,
	}
}

// namedNamespaceParam is namespaceParam for operations that also take a name, where the CLI may
// refuse --all-namespaces.
func namedNamespaceParam(kind string) ParamSpec {
	p := namespaceParam(fmt.Sprintf("The namespace of the %s.", kind))
	p.Description += namedAllNamespacesNote
	return p
}

const namedAllNamespacesNote = ` ("all" is passed to the CLI as --all-namespaces; the CLI may reject it together with a name, which is reported as a command failure)`

func nameParam(description string) ParamSpec {
	return ParamSpec{
		Name:        ParamName,
		Kind:        ParamResourceName,
		Description: description,
		Required:    true,
	}
}

// listOperation lists a namespaced resource kind in wide output.
func listOperation(name, kind string) OperationSpec {
	return OperationSpec{
		Name:        name,
		Title:       fmt.Sprintf("List %s", kind),
		Description: fmt.Sprintf("Get the list of %s in the Kubernetes or OpenShift cluster", kind),
		Params:      []ParamSpec{commandParam(), namespaceParam("The namespace to query.")},
		Verb:        []string{"get", kind},
		Namespaced:  true,
		Flags:       []string{"-o", "wide"},
	}
}

// describeOperation describes a single namespaced resource.
func describeOperation(name, kind string, flags ...string) OperationSpec {
	return OperationSpec{
		Name:        name,
		Title:       fmt.Sprintf("Describe %s", kind),
		Description: fmt.Sprintf("Describe a specific %s in the Kubernetes or OpenShift cluster", kind),
		Params: []ParamSpec{
			nameParam(fmt.Sprintf("The name of the %s to describe", kind)),
			commandParam(),
			namedNamespaceParam(kind),
		},
		Verb:       []string{"describe", kind},
		Namespaced: true,
		Flags:      flags,
	}
}

func logsOperation(name, kind, prefix string) OperationSpec {
	return OperationSpec{
		Name:        name,
		Title:       fmt.Sprintf("Get %s logs", kind),
		Description: fmt.Sprintf("Get the logs of a specific %s in the Kubernetes or OpenShift cluster", kind),
		Params: []ParamSpec{
			nameParam(fmt.Sprintf("The name of the %s to get logs for", kind)),
			commandParam(),
			namedNamespaceParam(kind),
		},
		Verb:       []string{"logs"},
		NamePrefix: prefix,
		Namespaced: true,
	}
}

var catalog = []OperationSpec{
	{
		Name:        "get_cluster_nodes",
		Title:       "List nodes",
		Description: "Get the list of nodes in the Kubernetes or OpenShift cluster",
		Params:      []ParamSpec{commandParam()},
		Verb:        []string{"get", "nodes"},
		Flags:       []string{"-o", "wide"},
	},
	{
		Name:        "get_installed_operators",
		Title:       "List installed operators",
		Description: "Get the list of installed operators (ClusterServiceVersions) in the Kubernetes or OpenShift cluster",
		Params:      []ParamSpec{commandParam()},
		Verb:        []string{"get", "csv"},
		Flags:       []string{"-A"},
	},
	listOperation("get_pods", "pods"),
	describeOperation("describe_pod", "pod"),
	listOperation("get_jobs", "jobs"),
	logsOperation("get_job_logs", "job", "job/"),
	listOperation("get_daemonsets", "daemonsets"),
	describeOperation("describe_daemonset", "daemonset", "-o", "json"),
	logsOperation("get_pod_logs", "pod", ""),
	{
		Name:        "get_kataconfig_status",
		Title:       "Get KataConfig status",
		Description: "Get the status of the KataConfig object in the Kubernetes or OpenShift cluster",
		Params:      []ParamSpec{commandParam()},
		Verb:        []string{"get", "kataconfig"},
		Flags:       []string{"-o", "wide"},
	},
	{
		Name:        "describe_kataconfig",
		Title:       "Describe KataConfig",
		Description: "Describe a specific KataConfig object in the Kubernetes or OpenShift cluster",
		Params: []ParamSpec{
			nameParam("The name of the KataConfig object to describe"),
			commandParam(),
		},
		Verb: []string{"describe", "kataconfig"},
	},
	listOperation("get_configmaps", "configmaps"),
	describeOperation("describe_configmap", "configmap"),
	listOperation("get_secrets", "secrets"),
	describeOperation("describe_secret", "secret", "-o", "json"),
}

// Catalog returns every operation in registration order.
func Catalog() []OperationSpec {
	return slices.Clone(catalog)
}

// Lookup finds an operation by its exact name.
func Lookup(name string) (OperationSpec, bool) {
	for _, op := range catalog {
		if op.Name == name {
			return op, true
		}
	}
	return OperationSpec{}, false
}

// OperationNames returns the names of every catalog operation.
func OperationNames() []string {
	names := make([]string, 0, len(catalog))
	for _, op := range catalog {
		names = append(names, op.Name)
	}
	return names
}
