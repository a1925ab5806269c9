// Package plan parses a markdown plan document into an ordered list of
// tasks, per the grammar described for the Plan Parser component: a
// "## Tasks" section containing "### N. Title" subheadings with leading
// "- key: value" metadata bullets.
package plan

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/drones/internal/models"
)

// Parser parses plan documents. It is safe for reuse and concurrent use;
// goldmark parsers hold no mutable state between Parse calls.
type Parser struct {
	markdown goldmark.Markdown
}

// New returns a ready-to-use Parser.
func New() *Parser {
	return &Parser{markdown: goldmark.New()}
}

var (
	tasksHeadingRe = regexp.MustCompile(`(?i)^tasks$`)
	taskHeadingRe  = regexp.MustCompile(`^(\d+)\.\s*(.+)$`)
	metaBulletRe   = regexp.MustCompile(`(?i)^-\s*([a-zA-Z_]+)\s*:\s*(.*)$`)
)

// Parse reads a full plan document and returns its parsed form. A document
// with no "## Tasks" section, or one with no valid "### N." subheadings
// inside it, parses to a Plan with an empty Tasks slice rather than an
// error — per §4.1 that is a legitimate free-form plan.
func (p *Parser) Parse(r io.Reader) (*models.Plan, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, models.NewClassifiedError(models.ParseErrorKind, "failed to read plan", "", err)
	}

	body, frontmatter := extractFrontmatter(raw)

	result := &models.Plan{}
	if frontmatter != nil {
		var fm frontmatterSpec
		if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
			return nil, models.NewClassifiedError(models.ParseErrorKind, "invalid plan frontmatter",
				"fix the YAML between the --- delimiters", err)
		}
		result.TargetBranch = fm.TargetBranch
		result.BaseBranch = fm.BaseBranch
	}

	doc := p.markdown.Parser().Parse(text.NewReader(body))
	result.Title = firstH1Text(doc, body)

	tasksHeading := findTasksHeading(doc, body)
	if tasksHeading == nil {
		return result, nil
	}

	tasks, err := extractTasks(tasksHeading, body)
	if err != nil {
		return nil, err
	}
	result.Tasks = tasks
	return result, nil
}

// ParseFile opens and parses a plan file from disk.
func (p *Parser) ParseFile(path string) (*models.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewClassifiedError(models.ParseErrorKind, "failed to open plan file", "", err)
	}
	defer f.Close()

	result, err := p.Parse(f)
	if err != nil {
		return nil, err
	}
	result.FilePath = path
	return result, nil
}

// headingText renders the flattened text content of a heading node.
func headingText(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
		}
	}
	return strings.TrimSpace(sb.String())
}

// firstH1Text returns the text of the document's first level-1 heading,
// or "" if there is none.
func firstH1Text(doc ast.Node, source []byte) string {
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		if h, ok := c.(*ast.Heading); ok && h.Level == 1 {
			return headingText(h, source)
		}
	}
	return ""
}

// findTasksHeading locates the first top-level "## Tasks" heading node.
func findTasksHeading(doc ast.Node, source []byte) ast.Node {
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		if h, ok := c.(*ast.Heading); ok && h.Level == 2 {
			if tasksHeadingRe.MatchString(headingText(h, source)) {
				return h
			}
		}
	}
	return nil
}

// lineStart scans backward from pos to the start of its containing line.
func lineStart(source []byte, pos int) int {
	for pos > 0 && source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd scans forward from pos to just past the end of its line
// (i.e. past the trailing '\n', or len(source) at EOF).
func lineEnd(source []byte, pos int) int {
	for pos < len(source) && source[pos] != '\n' {
		pos++
	}
	if pos < len(source) {
		pos++
	}
	return pos
}

// extractTasks walks the siblings following the "## Tasks" heading, ending
// at the next level-1/level-2 heading, collecting each "### N. Title"
// subheading as a task with its metadata bullets and body.
func extractTasks(tasksHeading ast.Node, source []byte) ([]models.Task, error) {
	var tasks []models.Task

	type pending struct {
		number int
		title  string
		start  int // byte offset where this task's body begins
	}
	var cur *pending

	flush := func(end int) error {
		if cur == nil {
			return nil
		}
		raw := string(source[cur.start:end])
		task, err := buildTask(cur.number, cur.title, raw)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
		cur = nil
		return nil
	}

	for n := tasksHeading.NextSibling(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		if h.Level <= 2 {
			break // next top-level section ends the Tasks section
		}
		if h.Level != 3 {
			continue
		}

		lines := h.Lines()
		if lines.Len() == 0 {
			continue
		}
		headingStart := lineStart(source, lines.At(0).Start)
		headingStop := lineEnd(source, lines.At(lines.Len()-1).Stop)

		if err := flush(headingStart); err != nil {
			return nil, err
		}

		text := headingText(h, source)
		m := taskHeadingRe.FindStringSubmatch(text)
		if m == nil {
			continue // not a valid "N. Title" subheading; not a task
		}
		number, err := strconv.Atoi(m[1])
		if err != nil || number <= 0 {
			continue
		}
		title := strings.TrimSpace(m[2])
		if title == "" {
			continue
		}
		cur = &pending{number: number, title: title, start: headingStop}
	}

	if err := flush(len(source)); err != nil {
		return nil, err
	}

	return tasks, nil
}

// buildTask parses the leading metadata bullets out of a task's raw body
// and returns the populated Task.
func buildTask(number int, title, raw string) (models.Task, error) {
	lines := strings.Split(raw, "\n")

	meta := make(map[string]string)
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			i++
			break
		}
		m := metaBulletRe.FindStringSubmatch(trimmed)
		if m == nil {
			break
		}
		meta[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
	}
	body := strings.TrimSpace(strings.Join(lines[i:], "\n"))

	task := models.Task{
		Number:   number,
		Title:    title,
		Body:     body,
		Type:     "work",
		Parallel: true,
	}

	if v, ok := meta["type"]; ok && v != "" {
		task.Type = v
	}
	if v, ok := meta["model"]; ok {
		task.Model = v
	}
	if v, ok := meta["parallel"]; ok {
		task.Parallel = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if v, ok := meta["files"]; ok && v != "" {
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				task.Files = append(task.Files, f)
			}
		}
	}
	if v, ok := meta["depends_on"]; ok && v != "" {
		for _, d := range strings.Split(v, ",") {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			n, err := strconv.Atoi(d)
			if err != nil {
				return models.Task{}, models.NewClassifiedError(models.ParseErrorKind,
					fmt.Sprintf("task %d has non-integer depends_on entry %q", number, d),
					"depends_on must be a comma-separated list of task numbers", err)
			}
			task.DependsOn = append(task.DependsOn, n)
		}
	}

	return task, nil
}
