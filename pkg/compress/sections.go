package compress

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Section markers are attached by the context builder at assembly time:
//
//	== section name == priority=7 keep
//
// priority ranges 0 (drop first) to 9; unmarked sections default to 5.
// "keep" tags must-keep content (entity names and the like) that survives
// every reduction pass verbatim.
var sectionMarker = regexp.MustCompile(`^== (.+?) ==(.*)$`)

const defaultPriority = 5

type section struct {
	name     string
	priority int
	keep     bool
	header   string
	body     string
	dropped  bool
}

type document struct {
	preamble string
	sections []section
}

func parse(blob string) *document {
	doc := &document{}
	lines := strings.Split(blob, "\n")

	var current *section
	var buf []string

	flush := func() {
		joined := strings.Join(buf, "\n")
		if current == nil {
			doc.preamble = joined
		} else {
			current.body = joined
			doc.sections = append(doc.sections, *current)
		}
		buf = nil
	}

	for _, line := range lines {
		if m := sectionMarker.FindStringSubmatch(line); m != nil {
			flush()
			sec := section{
				name:     strings.TrimSpace(m[1]),
				priority: defaultPriority,
				header:   line,
			}
			parseAttrs(&sec, m[2])
			current = &sec
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return doc
}

func parseAttrs(sec *section, attrs string) {
	for _, field := range strings.Fields(attrs) {
		if field == "keep" {
			sec.keep = true
			continue
		}
		if value, ok := strings.CutPrefix(field, "priority="); ok {
			if p, err := strconv.Atoi(value); err == nil && p >= 0 && p <= 9 {
				sec.priority = p
			}
		}
	}
}

// applyHint biases section priorities for the task at hand. Diagram tasks
// depend on extracted entity and relationship names, so those sections are
// promoted to must-keep.
func (d *document) applyHint(taskType string) {
	if !strings.HasPrefix(taskType, "diagram") {
		return
	}
	for i := range d.sections {
		name := strings.ToLower(d.sections[i].name)
		if strings.Contains(name, "entit") || strings.Contains(name, "relation") || strings.Contains(name, "data model") {
			d.sections[i].keep = true
		}
	}
}

// each applies a line-level reduction to the preamble and every live section.
func (d *document) each(fn func(string) string) {
	d.preamble = fn(d.preamble)
	for i := range d.sections {
		if d.sections[i].keep {
			continue
		}
		d.sections[i].body = fn(d.sections[i].body)
	}
}

// dedupe drops repeated near-identical lines across the whole document,
// keeping first occurrences. Must-keep sections are left verbatim but still
// register their lines, so duplicates elsewhere go away.
func (d *document) dedupe() {
	seen := make(map[string]bool)

	register := func(body string) {
		for _, line := range strings.Split(body, "\n") {
			if norm := normalizeLine(line); len(norm) >= 12 {
				seen[norm] = true
			}
		}
	}
	register(d.preamble)
	for _, sec := range d.sections {
		if sec.keep && !sec.dropped {
			register(sec.body)
		}
	}

	filter := func(body string) string {
		lines := strings.Split(body, "\n")
		out := make([]string, 0, len(lines))
		local := make(map[string]bool)
		for _, line := range lines {
			norm := normalizeLine(line)
			if len(norm) >= 12 {
				if local[norm] {
					continue
				}
				local[norm] = true
			}
			out = append(out, line)
		}
		return strings.Join(out, "\n")
	}

	d.preamble = filter(d.preamble)

	for i := range d.sections {
		sec := &d.sections[i]
		if sec.keep || sec.dropped {
			continue
		}
		lines := strings.Split(sec.body, "\n")
		out := make([]string, 0, len(lines))
		for _, line := range lines {
			norm := normalizeLine(line)
			if len(norm) >= 12 {
				if seen[norm] {
					continue
				}
				seen[norm] = true
			}
			out = append(out, line)
		}
		sec.body = strings.Join(out, "\n")
	}
}

// dropSections marks whole sections dropped, lowest priority first, until
// the rendered document fits. Ties drop later sections first.
func (d *document) dropSections(limit int) {
	order := make([]int, 0, len(d.sections))
	for i := range d.sections {
		if !d.sections[i].keep {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		if d.sections[order[a]].priority != d.sections[order[b]].priority {
			return d.sections[order[a]].priority < d.sections[order[b]].priority
		}
		return order[a] > order[b]
	})

	for _, idx := range order {
		if len(d.render()) <= limit {
			return
		}
		d.sections[idx].dropped = true
	}
}

// hardTruncate assembles the preamble and must-keep sections first, then
// fills the remaining allowance with whatever surviving content fits.
// The result is always within limit.
func (d *document) hardTruncate(limit int) string {
	var sb strings.Builder

	appendPart := func(part string) bool {
		if part == "" {
			return true
		}
		remaining := limit - sb.Len()
		if remaining <= 0 {
			return false
		}
		if sb.Len() > 0 {
			part = "\n" + part
		}
		if len(part) > remaining {
			sb.WriteString(part[:remaining])
			return false
		}
		sb.WriteString(part)
		return true
	}

	appendPart(d.preamble)
	for _, sec := range d.sections {
		if sec.keep && !sec.dropped {
			appendPart(sec.header + "\n" + sec.body)
		}
	}
	for _, sec := range d.sections {
		if sec.keep || sec.dropped {
			continue
		}
		if !appendPart(sec.header + "\n" + sec.body) {
			break
		}
	}

	out := sb.String()
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (d *document) render() string {
	parts := make([]string, 0, len(d.sections)+1)
	if d.preamble != "" {
		parts = append(parts, d.preamble)
	}
	for _, sec := range d.sections {
		if sec.dropped {
			continue
		}
		parts = append(parts, sec.header+"\n"+sec.body)
	}
	return strings.Join(parts, "\n")
}
