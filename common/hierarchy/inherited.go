package hierarchy

import "github.com/lyzr/orgsync/common/models"

// RecomputeInherited derives the inherited attachments of every node from the
// ATTACHED sets of its ancestors, top-down. attached is keyed by node key; the
// result is keyed the same way and replaces whatever inherited data existed before.
// A policy reachable through several ancestors is reported once, from the outermost.
func RecomputeInherited(g *Graph, attached map[string][]models.PolicyAttachment) map[string][]models.PolicyAttachment {
	inherited := make(map[string][]models.PolicyAttachment, len(g.Nodes))

	_ = g.Walk(func(key string, node *models.HierarchyNode) error {
		parent := g.Parent(node)
		if parent == nil {
			inherited[key] = nil
			return nil
		}
		parentKey := g.Key(parent)

		seen := make(map[string]bool)
		var out []models.PolicyAttachment
		for _, a := range inherited[parentKey] {
			seen[attachmentIdentity(a)] = true
			a.TargetID = node.ID
			out = append(out, a)
		}
		for _, a := range attached[parentKey] {
			id := attachmentIdentity(a)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, models.PolicyAttachment{
				PolicyID:   a.PolicyID,
				PolicyName: a.PolicyName,
				TargetID:   node.ID,
				Origin:     models.OriginInherited,
				Source:     parent.Path,
			})
		}
		inherited[key] = out
		return nil
	})
	return inherited
}

func attachmentIdentity(a models.PolicyAttachment) string {
	if a.PolicyID != "" {
		return "id:" + a.PolicyID
	}
	return "name:" + a.PolicyName
}
