package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/annofrag/internal/model"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// VerifyResult compares a rendered report with a golden file
type VerifyResult struct {
	Golden  string // Golden file path
	Match   bool
	Changes int    // Inserted or deleted runs
	Diff    string // Colored diff, empty on match
	Patch   string // Unified-style patch text, empty on match
}

// Verify compares the report's output with the golden file at goldenPath
func Verify(report *model.RenderReport, goldenPath string) (*VerifyResult, error) {
	want, err := os.ReadFile(goldenPath)
	if err != nil {
		return nil, fmt.Errorf("read golden: %w", err)
	}
	got, err := ReportOutput(report)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Golden: goldenPath, Match: string(want) == got}
	if res.Match {
		return res, nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(string(want), got, false))
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			res.Changes++
		}
	}
	res.Diff = dmp.DiffPrettyText(diffs)
	res.Patch = dmp.PatchToText(dmp.PatchMake(string(want), diffs))
	return res, nil
}

// UpdateGolden writes the report's output as the new golden file
func UpdateGolden(report *model.RenderReport, goldenPath string) error {
	if goldenPath == "" {
		return errors.New("update golden: empty path")
	}
	return NewWriter(nil).WriteOutput(report, goldenPath)
}
