package repomix

import (
	"path"
	"regexp"
	"strings"
)

var filePathRe = regexp.MustCompile(`^[\w\-./]+\.\w+$`)

// directorySection returns the text between the directory structure tags.
// Without a closing tag it runs to the end of the content.
func directorySection(content string) (string, bool) {
	start := strings.Index(content, dirStructureOpen)
	if start < 0 {
		return "", false
	}
	section := content[start+len(dirStructureOpen):]
	if end := strings.Index(section, dirStructureClose); end >= 0 {
		section = section[:end]
	}
	return section, true
}

type treeEntry struct {
	indent int
	name   string
}

// treeWalker rebuilds full paths from an indented directory listing
type treeWalker struct {
	stack []treeEntry
}

// visit consumes one raw line. It returns the cleaned leaf name and its
// full path, or ok=false for blank lines and directories.
func (w *treeWalker) visit(raw string) (leaf, full string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", false
	}
	indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

	for len(w.stack) > 0 && w.stack[len(w.stack)-1].indent >= indent {
		w.stack = w.stack[:len(w.stack)-1]
	}

	if strings.HasSuffix(trimmed, "/") {
		w.stack = append(w.stack, treeEntry{indent: indent, name: strings.TrimSuffix(trimmed, "/")})
		return "", "", false
	}

	leaf = strings.TrimLeft(trimmed, " -")
	if len(w.stack) == 0 || strings.Contains(leaf, "/") {
		return leaf, leaf, true
	}
	parts := make([]string, 0, len(w.stack)+1)
	for _, e := range w.stack {
		parts = append(parts, strings.TrimLeft(e.name, " -"))
	}
	parts = append(parts, leaf)
	return leaf, path.Join(parts...), true
}

func strictPathLine(leaf string) bool {
	if strings.ContainsAny(leaf, "=(){}<>;:") {
		return false
	}
	if len(strings.Fields(leaf)) > 2 {
		return false
	}
	return filePathRe.MatchString(leaf) || strings.Contains(leaf, "/")
}

func lenientPathLine(leaf string) bool {
	return len(strings.Fields(leaf)) <= 3 && !strings.ContainsAny(leaf, "=(")
}

// ExtractFilePaths lists the file paths in the directory structure section
// of repomix output. Nested entries are joined with their parent
// directories. When the strict line filter finds nothing, a lenient one
// is used.
func ExtractFilePaths(content string) []string {
	section, ok := directorySection(content)
	if !ok {
		return nil
	}
	lines := strings.Split(section, "\n")

	if paths := collectPaths(lines, strictPathLine); len(paths) > 0 {
		return paths
	}
	return collectPaths(lines, lenientPathLine)
}

func collectPaths(lines []string, keep func(string) bool) []string {
	var (
		w     treeWalker
		paths []string
		seen  = make(map[string]struct{})
	)
	for _, line := range lines {
		leaf, full, ok := w.visit(line)
		if !ok || !keep(leaf) {
			continue
		}
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		paths = append(paths, full)
	}
	return paths
}
