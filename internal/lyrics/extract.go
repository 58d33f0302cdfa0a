package lyrics

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// source knows where a site keeps its lyrics and what to strip around them.
type source struct {
	name       string
	hosts      []string
	selectors  []string
	strip      []string
	keepBlanks bool
}

var sources = []source{
	{
		name:      "amdm.ru",
		hosts:     []string{"amdm.ru"},
		selectors: []string{`pre[itemprop="chordsBlock"]`},
		strip:     []string{".podbor__chord", ".podbor__author-comment"},
	},
	{
		name:       "genius.com",
		hosts:      []string{"genius.com"},
		selectors:  []string{`[data-lyrics-container="true"]`},
		strip:      []string{`[data-exclude-from-selection="true"]`},
		keepBlanks: true,
	},
}

var generic = source{
	name:       "web",
	selectors:  []string{"pre", ".lyrics", "#lyrics"},
	strip:      []string{"script", "style"},
	keepBlanks: true,
}

func sourceFor(host string) source {
	host = strings.ToLower(host)
	for _, s := range sources {
		for _, h := range s.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return s
			}
		}
	}
	return generic
}

// extract returns the cleaned lyrics of the first selector that matches
// anything, falling back to the generic selectors.
func (s source) extract(doc *goquery.Document) string {
	if text := s.extractWith(doc, s.selectors); text != "" {
		return text
	}
	if s.name == generic.name {
		return ""
	}
	return generic.extractWith(doc, generic.selectors)
}

func (s source) extractWith(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}

		var blocks []string
		found.Each(func(_ int, block *goquery.Selection) {
			block = block.Clone()
			for _, strip := range s.strip {
				block.Find(strip).ReplaceWithHtml("\n")
			}
			block.Find(".podbor__keyword").Each(func(_ int, kw *goquery.Selection) {
				if isSkippedSection(kw.Text()) {
					kw.ReplaceWithHtml("\n\n")
				}
			})
			block.Find("br").ReplaceWithHtml("\n")
			blocks = append(blocks, block.Text())
		})

		if text := cleanLines(strings.Join(blocks, "\n"), s.keepBlanks); text != "" {
			return text
		}
	}
	return ""
}

var (
	separatorLine   = regexp.MustCompile(`^[\s|]*$`)
	commentArtifact = regexp.MustCompile(`/\*[^*]*\*?/?`)
	sectionMarker   = regexp.MustCompile(`^\[([^\]]+?):?\]:?`)
)

var keptSections = map[string]string{
	"куплет":  "Verse",
	"припев":  "Chorus",
	"переход": "Bridge",
	"verse":   "Verse",
	"chorus":  "Chorus",
	"hook":    "Hook",
	"bridge":  "Bridge",
}

var skippedSections = map[string]bool{
	"вступление":   true,
	"проигрыш":     true,
	"кода":         true,
	"intro":        true,
	"solo":         true,
	"outro":        true,
	"instrumental": true,
}

func sectionName(marker string) string {
	name := strings.ToLower(strings.TrimSpace(marker))
	if i := strings.IndexAny(name, " :0123456789"); i > 0 {
		name = name[:i]
	}
	return name
}

func isSkippedSection(text string) bool {
	m := sectionMarker.FindStringSubmatch(strings.TrimSpace(text))
	return m != nil && skippedSections[sectionName(m[1])]
}

// cleanLines turns extracted page text into buffer text: one lyric line per
// line and kept section markers normalized. Blank lines survive only when
// keepBlanks is set; section boundaries always get one.
func cleanLines(raw string, keepBlanks bool) string {
	var out []string
	afterMarker := false
	addBlank := func() {
		if len(out) > 0 && out[len(out)-1] != "" && !afterMarker {
			out = append(out, "")
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if separatorLine.MatchString(line) {
			if keepBlanks {
				addBlank()
			}
			continue
		}

		if m := sectionMarker.FindStringSubmatch(line); m != nil {
			name := sectionName(m[1])
			if label, ok := keptSections[name]; ok {
				addBlank()
				out = append(out, "["+label+"]")
				afterMarker = true
				continue
			}
			if skippedSections[name] {
				addBlank()
				continue
			}
		}

		line = commentArtifact.ReplaceAllString(line, "")
		line = strings.TrimSpace(strings.ReplaceAll(line, "*", ""))
		if line == "" {
			continue
		}
		out = append(out, line)
		afterMarker = false
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
