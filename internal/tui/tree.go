package tui

import (
	"fmt"
	"strings"

	"github.com/existflow/postboard/internal/model"
)

type row struct {
	thread *model.Thread
	depth  int
}

// flatten lists threads depth first, skipping the replies of collapsed posts
func flatten(threads []*model.Thread, collapsed map[string]bool) []row {
	var rows []row
	var walk func(t *model.Thread, depth int)
	walk = func(t *model.Thread, depth int) {
		rows = append(rows, row{thread: t, depth: depth})
		if collapsed[t.ID] {
			return
		}
		for _, c := range t.Children {
			walk(c, depth+1)
		}
	}
	for _, t := range threads {
		walk(t, 0)
	}
	return rows
}

// RenderThread draws a post, its content and its reply tree for plain
// terminal output.
func RenderThread(t *model.Thread) string {
	var b strings.Builder
	b.WriteString(postLine(t) + "\n")
	for _, line := range strings.Split(t.Content, "\n") {
		b.WriteString("   " + line + "\n")
	}
	renderChildren(&b, t.Children, "")
	return b.String()
}

func renderChildren(b *strings.Builder, children []*model.Thread, prefix string) {
	for i, c := range children {
		branch, next := "├─ ", "│  "
		if i == len(children)-1 {
			branch, next = "└─ ", "   "
		}
		b.WriteString(prefix + BranchStyle.Render(branch) + postLine(c) + "\n")
		renderChildren(b, c.Children, prefix+next)
	}
}

func postLine(t *model.Thread) string {
	return fmt.Sprintf("%s %s %s",
		TitleStyle.Render(t.Title),
		AuthorStyle.Render("@"+t.Author.Username),
		MetaStyle.Render(shortID(t.ID)))
}
