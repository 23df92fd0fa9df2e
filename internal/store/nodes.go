package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gst-analyzer/internal/model"
)

var nodeColumns = []string{"run_id", "pan", "is_bogus", "risk_score", "data"}

// nodeRows flattens nodes into insert rows ordered by PAN. The full node is
// kept as JSON; is_bogus and risk_score are copied out for filtering.
func nodeRows(runID string, nodes model.NodeSet) ([][]any, error) {
	rows := make([][]any, 0, len(nodes))
	for _, n := range nodes.Sorted() {
		data, err := json.Marshal(n)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal node %s", n.PAN)
		}
		rows = append(rows, []any{runID, n.PAN, n.IsBogus, n.RiskScore, data})
	}
	return rows, nil
}

func decodeNode(data []byte) (*model.Node, error) {
	n := model.NewNode("")
	if err := json.Unmarshal(data, n); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal node")
	}
	if n.Children == nil {
		n.Children = make(model.IDSet)
	}
	if n.Parents == nil {
		n.Parents = make(model.IDSet)
	}
	return n, nil
}
