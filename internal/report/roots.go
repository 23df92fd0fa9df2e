package report

import "github.com/sells-group/gst-analyzer/internal/model"

// RootCheck compares the configured root against the nodes that have no
// parents in an analysis.
type RootCheck struct {
	TotalNodes     int      `json:"total_nodes"`
	Roots          []Row    `json:"roots"`
	ConfiguredRoot string   `json:"configured_root"`
	Found          bool     `json:"found"`
	IsRoot         bool     `json:"is_root"`
	Parents        []string `json:"parents,omitempty"`
}

// CheckRoots lists parentless nodes and locates configuredRoot among them.
func CheckRoots(nodes model.NodeSet, configuredRoot string) RootCheck {
	rc := RootCheck{
		TotalNodes:     len(nodes),
		Roots:          []Row{},
		ConfiguredRoot: configuredRoot,
	}
	for _, n := range nodes.Roots() {
		rc.Roots = append(rc.Roots, NewRow(n))
	}
	if n, ok := nodes[configuredRoot]; ok {
		rc.Found = true
		rc.IsRoot = n.Parents.Len() == 0
		if !rc.IsRoot {
			rc.Parents = n.Parents.Sorted()
		}
	}
	return rc
}
