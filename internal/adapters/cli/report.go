package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/3-lines-studio/asgard/internal/core"
	"github.com/3-lines-studio/asgard/internal/usecase"
	"github.com/dustin/go-humanize"
)

type Failure struct {
	View    string
	Message string
	Details []string
}

// PrecompileReport summarizes a precompile run: the views that were built
// and the build errors of those that were not.
type PrecompileReport struct {
	out      *Output
	dir      string
	start    time.Time
	views    []usecase.ViewInfo
	failures []Failure
}

func NewPrecompileReport(out *Output, dir string) *PrecompileReport {
	return &PrecompileReport{
		out:   out,
		dir:   dir,
		start: time.Now(),
	}
}

func (r *PrecompileReport) AddViews(views []usecase.ViewInfo) {
	r.views = append(r.views, views...)
}

// AddError records err as a failure. Joined build errors become the
// details of a single failure.
func (r *PrecompileReport) AddError(err error) {
	if err == nil {
		return
	}

	f := Failure{View: core.ViewOf(err), Message: err.Error()}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			if e == core.ErrBuildFailed {
				f.Message = e.Error()
				continue
			}
			f.Details = append(f.Details, e.Error())
		}
	}

	r.failures = append(r.failures, f)
}

func (r *PrecompileReport) HasFailures() bool {
	return len(r.failures) > 0
}

func (r *PrecompileReport) Render() {
	duration := time.Since(r.start)

	slices.SortFunc(r.views, func(a, b usecase.ViewInfo) int { return strings.Compare(a.Key, b.Key) })

	var server, client uint64
	for _, v := range r.views {
		server += uint64(v.ServerBytes)
		client += uint64(v.ClientBytes)
		fmt.Fprintf(r.out.out, "  %s %-40s %s %s\n",
			r.out.Green("✓"),
			v.Key,
			r.out.Gray(fmt.Sprintf("server %8s", humanize.Bytes(uint64(v.ServerBytes)))),
			r.out.Gray(fmt.Sprintf("client %8s  %s", humanize.Bytes(uint64(v.ClientBytes)), formatDuration(v.BuildTime))),
		)
	}

	for _, f := range r.failures {
		name := f.View
		if name == "" {
			name = r.dir
		}
		r.out.Error("%s", name)
		fmt.Fprintf(r.out.err, "    %s\n", f.Message)
		for _, detail := range deduplicate(f.Details) {
			fmt.Fprintf(r.out.err, "      • %s\n", detail)
		}
	}

	fmt.Fprintln(r.out.out)
	if r.HasFailures() {
		fmt.Fprintf(r.out.err, "  %s\n", r.out.Red(fmt.Sprintf("Precompile failed after %s", formatDuration(duration))))
		return
	}
	r.out.Success("%s compiled in %s (server %s, client %s)",
		plural(len(r.views), "view"), formatDuration(duration), humanize.Bytes(server), humanize.Bytes(client))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.1fs", float64(d)/float64(time.Second))
}

// deduplicate keeps the first occurrence order and counts repeats.
func deduplicate(items []string) []string {
	if len(items) <= 1 {
		return items
	}

	counts := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if counts[item] == 0 {
			order = append(order, item)
		}
		counts[item]++
	}

	result := make([]string, 0, len(order))
	for _, item := range order {
		if n := counts[item]; n > 1 {
			result = append(result, fmt.Sprintf("%s (%d occurrences)", item, n))
		} else {
			result = append(result, item)
		}
	}
	return result
}
