package template

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/devhatch/wikigen/internal/errors"
)

// Renderer turns workflow templates and markdown summaries into Confluence
// storage format HTML.
type Renderer struct {
	repo       *Repository
	authorName string
	md         goldmark.Markdown
}

// NewRenderer creates a Renderer over a template repository.
func NewRenderer(repo *Repository, authorName string) *Renderer {
	return &Renderer{
		repo:       repo,
		authorName: authorName,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough),
		),
	}
}

// RenderWorkflowBody renders a workflow's page body template. Values of type
// template.HTML are inserted verbatim; everything else is escaped.
func (r *Renderer) RenderWorkflowBody(workflowType string, variables map[string]any) (string, error) {
	tpl, err := r.repo.WorkflowTemplate(workflowType)
	if err != nil {
		return "", err
	}
	return r.render(workflowType, tpl.Body, variables)
}

// RenderTitle renders a title format string.
func (r *Renderer) RenderTitle(format string, variables map[string]any) (string, error) {
	return r.render("title", format, variables)
}

// BuildYearMonthTitles renders the year and month container page titles for
// a date.
func (r *Renderer) BuildYearMonthTitles(year, month int) (yearTitle, monthTitle string, err error) {
	formats, err := r.repo.TitleFormats()
	if err != nil {
		return "", "", err
	}
	variables := map[string]any{
		"YEAR":         strconv.Itoa(year),
		"MONTH":        strconv.Itoa(month),
		"MONTH_PADDED": fmt.Sprintf("%02d", month),
		"AUTHOR_NAME":  r.authorName,
	}
	if yearTitle, err = r.RenderTitle(formats.Year, variables); err != nil {
		return "", "", err
	}
	if monthTitle, err = r.RenderTitle(formats.Month, variables); err != nil {
		return "", "", err
	}
	return yearTitle, monthTitle, nil
}

func (r *Renderer) render(name, text string, variables map[string]any) (string, error) {
	tpl, err := htmltemplate.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", errors.NewInternal("parse template " + name + ": " + err.Error())
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, variables); err != nil {
		return "", errors.NewInternal("render template " + name + ": " + err.Error())
	}
	return buf.String(), nil
}

// RenderChangeSummaryHTML converts a change summary to storage format HTML.
// Markdown input is converted with heading levels offset to start at h3 so
// the summary nests below the page's own h2 section. Content that already
// looks like HTML passes through untouched.
func (r *Renderer) RenderChangeSummaryHTML(summary string) htmltemplate.HTML {
	stripped := strings.TrimSpace(summary)
	if stripped == "" {
		return htmltemplate.HTML("<p>(변경 내용 없음)</p>")
	}
	if strings.HasPrefix(stripped, "<") && !strings.HasPrefix(stripped, "< ") {
		return htmltemplate.HTML(stripped)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(stripped), &buf); err != nil {
		// Fall back to a preformatted block rather than dropping content.
		return htmltemplate.HTML("<p>" + html.EscapeString(stripped) + "</p>")
	}
	out := offsetHeadings(buf.String())
	out = confluenceCodeBlocks(out)
	return htmltemplate.HTML(strings.TrimSpace(out))
}

const (
	minHeadingLevel = 3
	maxHeadingLevel = 6
)

var headingTagRe = regexp.MustCompile(`<(/?)h([1-6])>`)

// offsetHeadings shifts heading tags down so the smallest rendered heading
// is an h3 and nothing exceeds h6.
func offsetHeadings(s string) string {
	return headingTagRe.ReplaceAllStringFunc(s, func(tag string) string {
		m := headingTagRe.FindStringSubmatch(tag)
		level, _ := strconv.Atoi(m[2])
		target := level + 1
		if target < minHeadingLevel {
			target = minHeadingLevel
		}
		if target > maxHeadingLevel {
			target = maxHeadingLevel
		}
		return "<" + m[1] + "h" + strconv.Itoa(target) + ">"
	})
}

var codeBlockRe = regexp.MustCompile(`(?s)<pre><code(?: class="language-([^"]*)")?>(.*?)</code></pre>`)

// confluenceCodeBlocks rewrites fenced code blocks as Confluence code
// macros. The code body goes into a CDATA section, so any "]]>" inside the
// code has to be split.
func confluenceCodeBlocks(s string) string {
	return codeBlockRe.ReplaceAllStringFunc(s, func(block string) string {
		m := codeBlockRe.FindStringSubmatch(block)
		language := m[1]
		if language == "" {
			language = "text"
		}
		code := html.UnescapeString(m[2])
		code = strings.ReplaceAll(code, "]]>", "]]]]><![CDATA[>")
		return `<ac:structured-macro ac:name="code">` + "\n" +
			`  <ac:parameter ac:name="language">` + language + `</ac:parameter>` + "\n" +
			`  <ac:plain-text-body><![CDATA[` + code + `]]></ac:plain-text-body>` + "\n" +
			`</ac:structured-macro>` + "\n"
	})
}
