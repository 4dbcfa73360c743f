package memsearch

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Response formats accepted by Format.
const (
	FormatMarkdown = "markdown"
	FormatXML      = "xml"
	FormatTSV      = "tsv"
)

const previewWidth = 200

// Format renders an outcome in the requested structured format. User
// content is escaped at this boundary, never stored escaped.
func Format(out *Outcome, query, format string) (string, error) {
	switch format {
	case "", FormatMarkdown:
		return formatMarkdown(out, query), nil
	case FormatXML:
		return formatXML(out, query), nil
	case FormatTSV:
		return formatTSV(out), nil
	default:
		return "", fmt.Errorf("%w: unknown response format %q", ErrInvalidInput, format)
	}
}

func formatMarkdown(out *Outcome, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Results for %q\n\n", query)
	if len(out.Results) == 0 {
		b.WriteString("No matches.\n")
	}
	now := time.Now().UTC()
	for i, r := range out.Results {
		label := r.ConversationID
		if r.IsReflection {
			label = "reflection"
		}
		fmt.Fprintf(&b, "%d. **%s** (%s, score %.3f", i+1, label, r.ProjectName, r.Score)
		if !r.Timestamp.IsZero() {
			fmt.Fprintf(&b, ", %s", FormatRelative(r.Timestamp, now))
		}
		b.WriteString(")\n")
		if p := Preview(r.Text, previewWidth); p != "" {
			fmt.Fprintf(&b, "   %s\n", p)
		}
		if len(r.Concepts) > 0 {
			fmt.Fprintf(&b, "   concepts: %s\n", strings.Join(r.Concepts, ", "))
		}
	}
	if out.Note != "" {
		fmt.Fprintf(&b, "\n_Note: %s_\n", out.Note)
	}
	return b.String()
}

func formatXML(out *Outcome, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<results query=%q status=%q count=\"%d\">\n",
		xmlEscape(query), out.Status, len(out.Results))
	for _, r := range out.Results {
		fmt.Fprintf(&b, "  <result score=\"%.4f\">\n", r.Score)
		fmt.Fprintf(&b, "    <conversation_id>%s</conversation_id>\n", xmlEscape(r.ConversationID))
		fmt.Fprintf(&b, "    <project>%s</project>\n", xmlEscape(r.ProjectName))
		if !r.Timestamp.IsZero() {
			fmt.Fprintf(&b, "    <timestamp>%s</timestamp>\n", r.Timestamp.UTC().Format(time.RFC3339))
		}
		fmt.Fprintf(&b, "    <text>%s</text>\n", xmlEscape(r.Text))
		for _, c := range r.Concepts {
			fmt.Fprintf(&b, "    <concept>%s</concept>\n", xmlEscape(c))
		}
		b.WriteString("  </result>\n")
	}
	if out.Note != "" {
		fmt.Fprintf(&b, "  <note>%s</note>\n", xmlEscape(out.Note))
	}
	b.WriteString("</results>\n")
	return b.String()
}

func formatTSV(out *Outcome) string {
	var b strings.Builder
	b.WriteString("score\tconversation_id\tproject\ttimestamp\ttext\n")
	for _, r := range out.Results {
		fmt.Fprintf(&b, "%.4f\t%s\t%s\t%s\t%s\n",
			r.Score, tsvEscape(r.ConversationID), tsvEscape(r.ProjectName),
			r.Timestamp.UTC().Format(time.RFC3339), tsvEscape(Preview(r.Text, previewWidth)))
	}
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return ""
	}
	return b.String()
}

func tsvEscape(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}

// Preview flattens text to a single line clipped to maxWidth visible
// columns, wide runes counted at their display width.
func Preview(text string, maxWidth int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if flat == "" {
		return ""
	}
	width := 0
	for i := 0; i < len(flat); {
		r, size := utf8.DecodeRuneInString(flat[i:])
		rw := runewidth.RuneWidth(r)
		if width+rw > maxWidth {
			return strings.TrimRight(flat[:i], " ") + "…"
		}
		width += rw
		i += size
	}
	return flat
}
