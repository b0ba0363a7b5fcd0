package printer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~nightingale/nightpack"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rodaine/table"
)

// Output is where summaries are printed.
var Output io.Writer = os.Stdout

// Summary prints the artifacts and warnings of a report. Paths under root are
// shown relative to it.
func Summary(title, root string, report *nightpack.Report) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	warnFmt := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintln(Output, color.New(color.Bold).Sprint(title))

	tbl := table.New("Platform", "Artifact", "Size")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	tbl.WithWriter(Output)

	for _, artifact := range report.Artifacts {
		tbl.AddRow(artifact.Platform, relative(root, artifact.Path), humanize.Bytes(uint64(artifact.Size)))
	}
	tbl.Print()

	for _, warning := range report.Warnings {
		fmt.Fprintf(Output, "%s %s\n", warnFmt("warning:"), warning)
	}
}

func relative(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
