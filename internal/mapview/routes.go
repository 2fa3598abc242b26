package mapview

import (
	"strings"

	"warroom/internal/naming"
	"warroom/internal/warroom"
)

const sourcePrefix = "source-"

// resolveEndpoint maps a transit route endpoint onto one of the nodes on the
// map. References are tried as an id (directly, through the referenced
// entity's ancestors, then as the fleet sentinel), again with a "source-"
// prefix removed, and finally as a name or company substring.
func resolveEndpoint(ref string, st warroom.State, nodes []warroom.Node) (warroom.Node, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return warroom.Node{}, false
	}
	if n, ok := matchByID(ref, st, nodes); ok {
		return n, true
	}
	if stripped, ok := strings.CutPrefix(ref, sourcePrefix); ok && stripped != "" {
		if n, ok := matchByID(stripped, st, nodes); ok {
			return n, true
		}
		ref = stripped
	}
	for _, n := range nodes {
		if naming.ContainsFold(n.Name, ref) || naming.ContainsFold(n.Company, ref) {
			return n, true
		}
	}
	return warroom.Node{}, false
}

func matchByID(ref string, st warroom.State, nodes []warroom.Node) (warroom.Node, bool) {
	if n, ok := nodeByID(nodes, ref); ok {
		return n, true
	}
	for _, id := range ancestorIDs(st, ref) {
		if n, ok := nodeByID(nodes, id); ok {
			return n, true
		}
	}
	if strings.EqualFold(ref, warroom.SentinelID) {
		for _, n := range nodes {
			if n.ID == warroom.SentinelID || n.ParentGroupID == warroom.SentinelID {
				return n, true
			}
		}
	}
	return warroom.Node{}, false
}

func ancestorIDs(st warroom.State, id string) []string {
	if f, ok := st.Factory(id); ok {
		return []string{f.SubsidiaryID, f.ParentGroupID}
	}
	if s, ok := st.Subsidiary(id); ok {
		return []string{s.ParentGroupID}
	}
	return nil
}

func nodeByID(nodes []warroom.Node, id string) (warroom.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return warroom.Node{}, false
}
