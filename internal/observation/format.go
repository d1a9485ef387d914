// Package observation renders a Snapshot, its Change Tracker diff, and
// intent availability into the agent-facing text block the engine returns
// after every OIL line.
package observation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/tracker"
)

// Options controls rendering; the Hidden filter mirrors Observe's
// IncludeHidden flag.
type Options struct {
	IncludeHidden bool
	MaxTextWidth  int // 0 disables truncation
}

// Render builds the full text block for one observation: header, element
// rows, patterns, available intents, and changes since the prior snapshot.
func Render(snap *snapshot.Snapshot, diff tracker.Diff, avail []tracker.Availability, opts Options) string {
	var b strings.Builder
	writeHeader(&b, snap)
	writeElements(&b, snap, opts)
	writePatterns(&b, snap)
	writeAvailability(&b, avail)
	writeChanges(&b, diff)
	return b.String()
}

func writeHeader(b *strings.Builder, snap *snapshot.Snapshot) {
	host, path := "", ""
	if u, err := url.Parse(snap.Page.URL); err == nil {
		host, path = u.Host, u.Path
	}
	fmt.Fprintf(b, "@ %s%s %q\n", host, path, snap.Page.Title)
}

func writeElements(b *strings.Builder, snap *snapshot.Snapshot, opts Options) {
	for _, el := range snap.Elements {
		if !opts.IncludeHidden && el.HasState(snapshot.StateHidden) {
			continue
		}
		roleTag := el.Tag
		if el.Role != "" {
			roleTag = el.Tag + "/" + el.Role
		}
		label := el.Label
		if label == "" {
			label = el.Text
		}
		if label == "" {
			label = el.Placeholder
		}
		if opts.MaxTextWidth > 0 {
			label = truncate(label, opts.MaxTextWidth)
		}
		states := activeStates(el)
		stateStr := ""
		if len(states) > 0 {
			stateStr = " {" + strings.Join(states, ",") + "}"
		}
		fmt.Fprintf(b, "[%d] %s %q%s\n", el.ID, roleTag, label, stateStr)
	}
}

// truncate clips s to at most width display columns (runewidth accounts for
// wide/combining runes the scanner may report from non-Latin pages), adding
// an ellipsis when it clips.
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width-1, "") + "…"
}

func activeStates(el snapshot.ElementEntry) []string {
	order := []snapshot.ElementState{
		snapshot.StateVisible, snapshot.StateHidden, snapshot.StateDisabled,
		snapshot.StateRequired, snapshot.StateChecked, snapshot.StatePrimary, snapshot.StateFocused,
	}
	var out []string
	for _, s := range order {
		if el.HasState(s) {
			out = append(out, string(s))
		}
	}
	return out
}

func writePatterns(b *strings.Builder, snap *snapshot.Snapshot) {
	if len(snap.Patterns) == 0 {
		return
	}
	b.WriteString("Patterns:\n")
	for _, p := range snap.Patterns {
		fmt.Fprintf(b, "- %s: %s\n", p.Name, joinIDs(p.ElementIDs))
	}
}

func writeAvailability(b *strings.Builder, avail []tracker.Availability) {
	if len(avail) == 0 {
		return
	}
	b.WriteString("Available Intents:\n")
	for _, a := range avail {
		if a.Status == tracker.Ready {
			fmt.Fprintf(b, "- %s %s\n", a.Status.Icon(), a.Name)
			continue
		}
		fmt.Fprintf(b, "- %s %s [%s]\n", a.Status.Icon(), a.Name, a.Reason)
	}
}

func writeChanges(b *strings.Builder, diff tracker.Diff) {
	if len(diff.Appeared) == 0 && len(diff.Disappeared) == 0 && len(diff.Changed) == 0 && diff.URLChanged == nil {
		return
	}
	b.WriteString("Changes:\n")
	for _, id := range diff.Appeared {
		fmt.Fprintf(b, "+ [%d]\n", id)
	}
	for _, id := range diff.Disappeared {
		fmt.Fprintf(b, "- [%d]\n", id)
	}
	for _, c := range diff.Changed {
		fmt.Fprintf(b, "~ [%d] %s: %s → %s\n", c.ID, c.Field, c.From, c.To)
	}
	if diff.URLChanged != nil {
		fmt.Fprintf(b, "~ url: %s → %s\n", diff.URLChanged.From, diff.URLChanged.To)
	}
}

func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
