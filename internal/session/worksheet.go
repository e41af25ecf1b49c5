package session

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/little-star/internal/content"
)

const (
	worksheetSheet = "Worksheet"
	answersSheet   = "Answers"
	blank          = "____"
)

// BlankSentence renders an item with its word replaced by a blank.
func BlankSentence(item content.VocabularyItem) string {
	return strings.TrimSpace(item.SentencePart1 + blank + item.SentencePart2)
}

// WriteWorksheet writes a printable workbook for items: the fill-in sheet and an answer key.
func WriteWorksheet(w io.Writer, title string, items []content.VocabularyItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", worksheetSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(answersSheet); err != nil {
		return fmt.Errorf("create answers sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "Little Star"}); err != nil {
			return fmt.Errorf("set properties: %w", err)
		}
	}

	sheets := []struct {
		name    string
		columns []any
		row     func(i int, item content.VocabularyItem) []any
		widths  map[string]float64
	}{
		{
			name:    worksheetSheet,
			columns: []any{"#", "Picture", "Sentence", "Hint"},
			row: func(i int, item content.VocabularyItem) []any {
				return []any{i + 1, item.Emoji, BlankSentence(item), item.Translation}
			},
			widths: map[string]float64{"A": 5, "B": 10, "C": 48, "D": 20},
		},
		{
			name:    answersSheet,
			columns: []any{"#", "Answer", "Sentence"},
			row: func(i int, item content.VocabularyItem) []any {
				return []any{i + 1, item.Word, item.FullSentence}
			},
			widths: map[string]float64{"A": 5, "B": 16, "C": 48},
		},
	}

	for _, sheet := range sheets {
		if err := f.SetSheetRow(sheet.name, "A1", &sheet.columns); err != nil {
			return fmt.Errorf("%s header: %w", sheet.name, err)
		}
		last, _ := excelize.CoordinatesToCellName(len(sheet.columns), 1)
		if err := f.SetCellStyle(sheet.name, "A1", last, header); err != nil {
			return fmt.Errorf("%s header style: %w", sheet.name, err)
		}
		for col, width := range sheet.widths {
			if err := f.SetColWidth(sheet.name, col, col, width); err != nil {
				return fmt.Errorf("%s width: %w", sheet.name, err)
			}
		}
		for i, item := range items {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			values := sheet.row(i, item)
			if err := f.SetSheetRow(sheet.name, cell, &values); err != nil {
				return fmt.Errorf("%s row %d: %w", sheet.name, i+1, err)
			}
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
