// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connector

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

const (
	maxPageChars  = 1000
	maxCSVColumns = 8
	maxCellChars  = 60
	maxSheetRows  = 2000
)

type chunk struct {
	loc  string
	text string
}

var xmlTag = regexp.MustCompile(`<[^>]+>`)

func extractChunks(path string, maxChunk int) ([]chunk, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfChunks(path)
	case ".csv":
		return csvChunks(path)
	case ".docx":
		return docxChunks(path, maxChunk)
	case ".xlsx":
		return xlsxChunks(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return textChunks(string(data), maxChunk), nil
	}
}

// textChunks collapses whitespace and cuts the text into fixed-size rune
// windows located as "chars a-b".
func textChunks(text string, size int) []chunk {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	var out []chunk
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece == "" {
			continue
		}
		out = append(out, chunk{loc: fmt.Sprintf("chars %d-%d", start, end), text: piece})
	}
	return out
}

func pdfChunks(path string) ([]chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var out []chunk
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = truncateRunes(strings.Join(strings.Fields(text), " "), maxPageChars)
		if text == "" {
			continue
		}
		out = append(out, chunk{loc: fmt.Sprintf("page %d", pageNum), text: text})
	}
	return out, nil
}

func csvChunks(path string) ([]chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []chunk
	for n := 1; ; n++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		if text := pairs(header, record, maxCSVColumns); text != "" {
			out = append(out, chunk{loc: fmt.Sprintf("row %d", n), text: text})
		}
	}
	return out, nil
}

func docxChunks(path string, maxChunk int) ([]chunk, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = html.UnescapeString(xmlTag.ReplaceAllString(content, " "))
	return textChunks(content, maxChunk), nil
}

func xlsxChunks(path string) ([]chunk, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	var out []chunk
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		header := rows[0]
		for i, row := range rows[1:] {
			if i >= maxSheetRows {
				break
			}
			if text := pairs(header, row, maxCSVColumns); text != "" {
				out = append(out, chunk{loc: fmt.Sprintf("sheet %s row %d", sheet, i+2), text: text})
			}
		}
	}
	return out, nil
}

// pairs renders the first limit non-empty cells as "header=value" pairs.
// Columns without a header are named by their spreadsheet letter.
func pairs(header, record []string, limit int) string {
	parts := make([]string, 0, limit)
	for i, cell := range record {
		if len(parts) >= limit {
			break
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := columnLetter(i)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		parts = append(parts, name+"="+truncateRunes(cell, maxCellChars))
	}
	return strings.Join(parts, "; ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// columnLetter converts a 0-based column index to A, B, ..., Z, AA, AB, ...
func columnLetter(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}
