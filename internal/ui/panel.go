package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abelbrown/tracklens/internal/dataset"
	"github.com/abelbrown/tracklens/internal/features"
	"github.com/abelbrown/tracklens/internal/palette"
	"github.com/abelbrown/tracklens/internal/recommend"
	"github.com/abelbrown/tracklens/internal/service"
)

// truncateRunes shortens s to n runes, marking the cut with an ellipsis.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// tooltip describes the hovered item with its values on the chosen axes.
func tooltip(it dataset.Item, axes []string, width int) string {
	lines := []string{
		truncateRunes(it.Name, width),
		MutedText.Render(truncateRunes("by "+it.Artist, width)),
		palette.Swatch(it.Cluster, "■") + fmt.Sprintf(" Cluster %d", it.Cluster),
	}
	for _, a := range axes {
		if v, ok := it.Features.Get(a); ok {
			lines = append(lines, fmt.Sprintf("%s: %.2f", features.Label(a), v))
		}
	}
	return TooltipStyle.Render(strings.Join(lines, "\n"))
}

// legend lists every cluster as a colored badge with its member count.
// The selected cluster is marked.
func legend(snap *dataset.Snapshot, selected int, width int) string {
	var rows []string
	var row []string
	used := 0
	for _, c := range snap.ClusterIDs() {
		label := fmt.Sprintf("%d·%d", c, snap.ClusterSize(c))
		if c == selected {
			label = "▸" + label
		}
		w := len([]rune(label)) + 3
		if used+w > width && len(row) > 0 {
			rows = append(rows, strings.Join(row, " "))
			row, used = nil, 0
		}
		row = append(row, palette.Badge(c, label))
		used += w
	}
	if len(row) > 0 {
		rows = append(rows, strings.Join(row, " "))
	}
	return strings.Join(rows, "\n")
}

// clusterSection shows the selected cluster's header and first members.
func clusterSection(snap *dataset.Snapshot, cluster, preview, width int) string {
	members := snap.Members(cluster)
	header := palette.Badge(cluster, fmt.Sprintf("Cluster %d", cluster)) +
		MutedText.Render(fmt.Sprintf(" %d tracks", len(members)))
	lines := []string{header}
	for i, it := range members {
		if i == preview {
			lines = append(lines, MutedText.Render(fmt.Sprintf("  … %d more", len(members)-preview)))
			break
		}
		lines = append(lines, "  "+truncateRunes(it.Name+" — "+it.Artist, width-2))
	}
	return strings.Join(lines, "\n")
}

// recsSection renders the recommendation state of the selected cluster.
func recsSection(st recommend.State, spin string, width int) string {
	lines := []string{SectionTitle.Render("Recommendations")}
	switch st.Phase {
	case recommend.Pending:
		lines = append(lines, spin+" Loading recommendations…")
	case recommend.Failed:
		lines = append(lines,
			ErrorStyle.Render(truncateRunes(errorText(st.Err), width)),
			MutedText.Render("press r to retry"))
	case recommend.Fulfilled:
		if len(st.Items) == 0 {
			lines = append(lines, MutedText.Render("No recommendations"))
			break
		}
		for i, r := range st.Items {
			lines = append(lines, recLine(i, r, width))
		}
	default:
		lines = append(lines, MutedText.Render("Select a cluster"))
	}
	return strings.Join(lines, "\n")
}

func recLine(i int, r service.Recommendation, width int) string {
	s := fmt.Sprintf("%2d. %s", i+1, r.Name)
	if a := r.Artist(); a != "" {
		s += " — " + a
	}
	return truncateRunes(s, width)
}

// errorText is the user-facing text for an error; service failures show
// their status.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var fe *service.FetchError
	if errors.As(err, &fe) && fe.Status > 0 {
		return fmt.Sprintf("%s failed (%d)", fe.Op, fe.Status)
	}
	return err.Error()
}
