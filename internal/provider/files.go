package provider

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

// ConfigPath renders p with forward slashes, which every bundled server
// accepts on all platforms.
func ConfigPath(p string) string {
	return filepath.ToSlash(p)
}

// RewriteFile applies edit to the file at path and writes it back with the
// same permissions.
func RewriteFile(path string, edit func(string) (string, error)) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := edit(string(data))
	if err != nil {
		return fmt.Errorf("editing %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, []byte(out), info.Mode().Perm())
}

// RenderFile executes a text/template with vars and writes the result to path.
func RenderFile(path, tmpl string, vars any) error {
	t, err := template.New(filepath.Base(path)).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parsing template for %s: %w", filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return fmt.Errorf("rendering %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// SetIniValue sets key to value in ini-style content. The first line that
// assigns key, commented out or not, is replaced; otherwise the assignment is
// appended.
func SetIniValue(content, key, value string) string {
	re := regexp.MustCompile(`(?m)^[ \t]*;?[ \t]*` + regexp.QuoteMeta(key) + `[ \t]*=.*$`)
	line := key + " = " + value
	if loc := re.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + line + content[loc[1]:]
	}
	return appendLine(content, line)
}

// EnableIniLine makes sure line is present and not commented out.
func EnableIniLine(content, line string) string {
	re := regexp.MustCompile(`(?m)^[ \t]*;?[ \t]*` + regexp.QuoteMeta(line) + `[ \t]*$`)
	if loc := re.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + line + content[loc[1]:]
	}
	return appendLine(content, line)
}

// SetDirective replaces every match of pattern with repl. It fails when the
// pattern does not occur, since the file is then not the expected one.
func SetDirective(content, pattern, repl string) (string, error) {
	re := regexp.MustCompile(`(?m)` + pattern)
	if !re.MatchString(content) {
		return "", fmt.Errorf("directive %q not found", pattern)
	}
	return re.ReplaceAllLiteralString(content, repl), nil
}

// ReplaceBlock inserts or replaces a block delimited by marker comments
// written with the file's comment prefix.
func ReplaceBlock(content, comment, marker, body string) string {
	begin := comment + " BEGIN " + marker
	end := comment + " END " + marker
	block := begin + "\n" + strings.TrimRight(body, "\n") + "\n" + end
	if i := strings.Index(content, begin); i >= 0 {
		if j := strings.Index(content[i:], end); j >= 0 {
			return content[:i] + block + content[i+j+len(end):]
		}
	}
	return appendLine(content, block)
}

func appendLine(content, line string) string {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + line + "\n"
}
