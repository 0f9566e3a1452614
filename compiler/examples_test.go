package compiler

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/pible-lang/pible/pkg/bpf"
)

// docExample is one compiled-and-executed snippet from the examples
// document: a holyc fence paired with the expect fence after it.
type docExample struct {
	name     string
	source   string
	exitCode uint64
	logs     []string
}

// extractExamples walks the markdown document and pairs each holyc
// fence with its expect fence, named by the nearest heading.
func extractExamples(markdown []byte) ([]docExample, error) {
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(markdown))

	var examples []docExample
	var current *docExample
	heading := "unnamed"

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading = string(n.Text(markdown))

		case *ast.FencedCodeBlock:
			content := fenceContent(n, markdown)
			switch string(n.Language(markdown)) {
			case "holyc":
				if current != nil {
					return ast.WalkStop, fmt.Errorf("%s: holyc fence without a following expect fence", current.name)
				}
				current = &docExample{name: heading, source: content}
			case "expect":
				if current == nil {
					return ast.WalkStop, fmt.Errorf("%s: expect fence without a preceding holyc fence", heading)
				}
				if err := parseExpect(current, content); err != nil {
					return ast.WalkStop, err
				}
				examples = append(examples, *current)
				current = nil
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("%s: holyc fence without a following expect fence", current.name)
	}
	return examples, nil
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	for i := 0; i < block.Lines().Len(); i++ {
		line := block.Lines().At(i)
		sb.Write(line.Value(source))
	}
	return sb.String()
}

func parseExpect(ex *docExample, content string) error {
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("%s: malformed expect line %q", ex.name, line)
		}
		value = strings.TrimSpace(value)
		switch key {
		case "exit":
			code, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: bad exit code %q", ex.name, value)
			}
			ex.exitCode = code
		case "log":
			ex.logs = append(ex.logs, value)
		default:
			return fmt.Errorf("%s: unknown expect key %q", ex.name, key)
		}
	}
	return nil
}

// TestDocumentationExamples compiles and runs every example in
// docs/examples.md, keeping the documentation honest.
func TestDocumentationExamples(t *testing.T) {
	markdown, err := os.ReadFile("../docs/examples.md")
	be.Err(t, err, nil)

	examples, err := extractExamples(markdown)
	be.Err(t, err, nil)
	be.True(t, len(examples) > 0)

	for _, ex := range examples {
		t.Run(ex.name, func(t *testing.T) {
			artifact, err := Compile(ex.source, TargetVM)
			be.Err(t, err, nil)

			result, err := bpf.NewVM(artifact.Program).Execute()
			be.Err(t, err, nil)
			be.Equal(t, result.ExitCode, ex.exitCode)
			for _, want := range ex.logs {
				found := false
				for _, got := range result.Logs {
					if got == want {
						found = true
					}
				}
				if !found {
					t.Errorf("missing log line %q in %v", want, result.Logs)
				}
			}
		})
	}
}
