// Package report renders a coverage analysis as localized plain text for the
// analyze command.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/tbraaten/quizcov/internal/i18n"
	"github.com/tbraaten/quizcov/internal/model"
)

// Write prints a human-readable coverage report. The context carries the
// localizer selecting the output language.
func Write(ctx context.Context, w io.Writer, resp *model.ModuleCoverageResponse) error {
	out := &errWriter{w: w}

	out.printf("%s\n", i18n.Td(ctx, "report.header", map[string]any{"Module": resp.Module.ModuleName}))
	out.printf("%s\n\n", i18n.Td(ctx, "report.computed_at", map[string]any{"Time": resp.ComputedAt}))

	st := resp.Statistics
	out.printf("%s\n", i18n.T(ctx, "report.statistics"))
	out.printf("  %s\n", i18n.Td(ctx, "report.sentences_covered", map[string]any{
		"Covered": st.CoveredSentences,
		"Total":   st.TotalSentences,
		"Percent": fmt.Sprintf("%.1f", st.CoveragePercentage),
	}))
	out.printf("  %s\n", i18n.Tp(ctx, "report.questions_analyzed", st.TotalQuestions))
	out.printf("  %s\n", i18n.Tp(ctx, "report.largest_gap", st.LargestGapSentences))
	out.printf("  %s\n\n", i18n.Tp(ctx, "report.gap_count", resp.Module.GapCount))

	if len(resp.Module.Pages) == 0 {
		out.printf("%s\n", i18n.T(ctx, "report.no_pages"))
		return out.err
	}

	for _, page := range resp.Module.Pages {
		out.printf("%s\n", i18n.Td(ctx, "report.page_header", map[string]any{
			"Title": page.Title,
			"Words": page.WordCount,
		}))
		for _, lvl := range []model.CoverageLevel{model.CoverageHigh, model.CoverageMedium, model.CoverageLow, model.CoverageNone} {
			out.printf("  %-8s %d\n", i18n.T(ctx, "report.level."+string(lvl)), page.CoverageSummary[lvl])
		}
		out.printf("\n")
	}
	return out.err
}

// errWriter collects the first write error so every printf stays one line.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
