package plan

import "bytes"

// extractFrontmatter splits a "---\n...\n---" YAML block from the head of
// content, returning the remaining body and the frontmatter bytes (nil if
// none present). Grounded on the teacher's parser.extractFrontmatter.
func extractFrontmatter(content []byte) (body []byte, frontmatter []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter = bytes.Join(lines[1:i], []byte("\n"))
			body = bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	return content, nil
}

// frontmatterSpec is the set of frontmatter keys §4.2 recognises.
type frontmatterSpec struct {
	TargetBranch string `yaml:"target_branch"`
	BaseBranch   string `yaml:"base_branch"`
}
