package report

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/formharness/internal/harness"
)

const (
	sheetNameFormat = "Report_%s"
	sheetTimeFormat = "2006-01-02_15-04-05"
	firstColumn     = 'A'
	columnWidth     = 14
	wideColumnWidth = 60

	patternType  = "pattern"
	patternSolid = 1
	failBgColor  = "FF5900"
	slowBgColor  = "FFEB9C"
)

// SlowCase is the case duration above which a passing row is highlighted.
var SlowCase = 30 * time.Second

var sheetHeaders = []string{
	"Scenario", "Case", "Name", "Action", "Expected",
	"Result", "Duration (ms)", "Errors", "Screenshot",
}

// WriteXLSX appends a sheet with one row per case to the workbook at path,
// creating the file if it does not exist. The sheet is named after at and
// becomes the active sheet. It returns the sheet name.
func WriteXLSX(path string, runs []*harness.RunResult, at time.Time) (string, error) {
	f, created, err := openWorkbook(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheet := fmt.Sprintf(sheetNameFormat, at.Format(sheetTimeFormat))
	if created {
		if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
			return "", fmt.Errorf("name sheet: %w", err)
		}
	} else {
		index, err := f.NewSheet(sheet)
		if err != nil {
			return "", fmt.Errorf("create sheet: %w", err)
		}
		f.SetActiveSheet(index)
	}

	last := firstColumn + rune(len(sheetHeaders)-1)
	if err := f.SetColWidth(sheet, string(firstColumn), string(last), columnWidth); err != nil {
		return "", fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "H", "H", wideColumnWidth); err != nil {
		return "", fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &sheetHeaders); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	failStyle, err := fillStyle(f, failBgColor)
	if err != nil {
		return "", err
	}
	slowStyle, err := fillStyle(f, slowBgColor)
	if err != nil {
		return "", err
	}

	row := 2
	for _, r := range runs {
		if r == nil {
			continue
		}
		for _, c := range r.Cases {
			result := "PASS"
			if !c.Pass {
				result = "FAIL"
			}
			cells := []any{
				r.Scenario,
				c.Index,
				c.Name,
				string(c.Action),
				string(c.Expected),
				result,
				c.Duration.Milliseconds(),
				strings.Join(c.Errors, "\n"),
				c.Screenshot,
			}
			start := fmt.Sprintf("A%d", row)
			if err := f.SetSheetRow(sheet, start, &cells); err != nil {
				return "", fmt.Errorf("write row %d: %w", row, err)
			}
			end := fmt.Sprintf("%c%d", last, row)
			switch {
			case !c.Pass:
				err = f.SetCellStyle(sheet, start, end, failStyle)
			case c.Duration > SlowCase:
				err = f.SetCellStyle(sheet, start, end, slowStyle)
			}
			if err != nil {
				return "", fmt.Errorf("style row %d: %w", row, err)
			}
			row++
		}
		if r.Aborted {
			cells := []any{r.Scenario, "", "", "", "", "ABORTED", "", r.Error}
			start := fmt.Sprintf("A%d", row)
			if err := f.SetSheetRow(sheet, start, &cells); err != nil {
				return "", fmt.Errorf("write row %d: %w", row, err)
			}
			if err := f.SetCellStyle(sheet, start, fmt.Sprintf("%c%d", last, row), failStyle); err != nil {
				return "", fmt.Errorf("style row %d: %w", row, err)
			}
			row++
		}
	}

	s := Summarize(runs)
	summary := [][]any{
		{"Summary"},
		{"Duration (ms)", s.Duration.Milliseconds()},
		{"Total", s.Total},
		{"Passed", s.Passed},
		{"Failed", s.Failed},
	}
	for i, cells := range summary {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row+1+i), &cells); err != nil {
			return "", fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return sheet, nil
}

func openWorkbook(path string) (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open report %s: %w", path, err)
	}
	return f, false, nil
}

func fillStyle(f *excelize.File, color string) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    patternType,
			Pattern: patternSolid,
			Color:   []string{color},
		},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	return style, nil
}
