package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/example/reviewplanner/internal/service"
	"github.com/example/reviewplanner/pkg/models"
)

const (
	defaultDifficulty = 0.5
	topicMarker       = "#"
)

// ItemTarget receives imported items.
type ItemTarget interface {
	Items(ctx context.Context, userID int64) ([]models.LearningItem, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*models.LearningItem, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath         string // Path to the Excel or CSV file
	UserID           int64  // Owner of the imported items
	ContentColumn    string // Column with the material to learn
	QuestionColumn   string // Column with an optional prompt
	AnswerColumn     string // Column with an optional answer
	TopicColumn      string // Column with the topic
	DifficultyColumn string // Column with the difficulty
	SheetName        string // Name of the sheet to import; empty means the first sheet
	StartRow         int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		ContentColumn:    "A",
		QuestionColumn:   "B",
		AnswerColumn:     "C",
		TopicColumn:      "D",
		DifficultyColumn: "E",
		StartRow:         2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

// Importer loads learning items from spreadsheets.
type Importer struct {
	target ItemTarget
	log    logrus.FieldLogger
}

// NewImporter creates an importer writing into target.
func NewImporter(target ItemTarget, log logrus.FieldLogger) *Importer {
	return &Importer{target: target, log: log.WithField("component", "importer")}
}

// row is one parsed line of input, independent of the file format.
type row struct {
	number     int
	content    string
	question   string
	answer     string
	topic      string
	difficulty string
}

var errSkipRow = errors.New("skipping row")

// Import reads an Excel or CSV file, chosen by extension, and creates one
// item per row. Rows whose content the user already has are skipped.
func (im *Importer) Import(ctx context.Context, cfg ImportConfig) (*ImportResult, error) {
	var (
		rows []row
		err  error
	)
	if strings.ToLower(filepath.Ext(cfg.FilePath)) == ".csv" {
		rows, err = readCSV(cfg)
	} else {
		rows, err = readExcel(cfg)
	}
	if err != nil {
		return nil, err
	}

	existing, err := im.target.Items(ctx, cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing items: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, it := range existing {
		seen[contentKey(it.Topic, it.Content)] = true
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for _, r := range rows {
		result.TotalProcessed++
		if err := im.processRow(ctx, cfg.UserID, r, seen, result); err != nil {
			if errors.Is(err, errSkipRow) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", r.number, err))
		}
	}

	im.log.WithFields(logrus.Fields{
		"file":    cfg.FilePath,
		"user_id": cfg.UserID,
		"created": result.Created,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	}).Info("import finished")
	return result, nil
}

func (im *Importer) processRow(ctx context.Context, userID int64, r row, seen map[string]bool, result *ImportResult) error {
	content := strings.TrimSpace(r.content)
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	key := contentKey(r.topic, content)
	if seen[key] {
		return errSkipRow
	}

	difficulty, err := parseDifficulty(r.difficulty)
	if err != nil {
		return err
	}

	_, err = im.target.AddItem(ctx, service.AddItemRequest{
		UserID:     userID,
		Topic:      r.topic,
		Content:    content,
		Question:   r.question,
		Answer:     r.answer,
		Difficulty: difficulty,
	})
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	seen[key] = true
	result.Created++
	return nil
}

// readExcel reads rows from an Excel workbook
func readExcel(cfg ImportConfig) ([]row, error) {
	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	rows := make([]row, 0, len(cells))
	for i, cols := range cells {
		// Skip header rows
		if i < cfg.StartRow-1 || isBlank(cols) {
			continue
		}
		rows = append(rows, rowFromColumns(cols, cfg, i+1, ""))
	}
	return rows, nil
}

// readCSV reads rows from a CSV file. A line whose first cell starts with
// topicMarker and has no other cells filled starts a new topic that applies to
// the following rows without one. Any other line is an item, content only or not.
func readCSV(cfg ImportConfig) ([]row, error) {
	file, err := os.Open(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var (
		rows         []row
		rowNum       int
		currentTopic string
	)
	for {
		cols, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++

		if rowNum < cfg.StartRow || isBlank(cols) {
			continue
		}
		if isTopicHeader(cols) {
			currentTopic = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cols[0]), topicMarker))
			continue
		}
		rows = append(rows, rowFromColumns(cols, cfg, rowNum, currentTopic))
	}
	return rows, nil
}

func rowFromColumns(cols []string, cfg ImportConfig, number int, fallbackTopic string) row {
	r := row{
		number:     number,
		content:    cell(cols, cfg.ContentColumn),
		question:   cell(cols, cfg.QuestionColumn),
		answer:     cell(cols, cfg.AnswerColumn),
		topic:      cell(cols, cfg.TopicColumn),
		difficulty: cell(cols, cfg.DifficultyColumn),
	}
	if r.topic == "" {
		r.topic = fallbackTopic
	}
	return r
}

func cell(cols []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(cols) {
		return strings.TrimSpace(cols[idx])
	}
	return ""
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isTopicHeader(cols []string) bool {
	if !strings.HasPrefix(strings.TrimSpace(cols[0]), topicMarker) {
		return false
	}
	for _, c := range cols[1:] {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseDifficulty accepts a value in [0, 1] or a 1-5 rating. Empty means medium.
func parseDifficulty(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultDifficulty, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid difficulty %q", s)
	}
	switch {
	case v >= 0 && v <= 1:
		return v, nil
	case v > 1 && v <= 5 && v == float64(int(v)):
		return (v - 1) / 4, nil
	}
	return 0, fmt.Errorf("difficulty %q out of range", s)
}

func contentKey(topic, content string) string {
	return strings.ToLower(strings.TrimSpace(topic)) + "\x00" + strings.ToLower(strings.TrimSpace(content))
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
